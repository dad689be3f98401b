package registry

func sink(name string) *Entry {
	return &Entry{Name: name, Role: RoleSink}
}

func source(name string, live bool) *Entry {
	return &Entry{Name: name, Role: RoleSource, Live: live}
}

// defaultEntries is the built-in catalog of deserialization sinks and
// untrusted input sources.
func defaultEntries() []*Entry {
	return []*Entry{
		// deserialization sinks
		sink("pickle.load"),
		sink("pickle.loads"),
		sink("pickle.Unpickler.load"),
		sink("cPickle.load"),
		sink("cPickle.loads"),
		sink("cloudpickle.load"),
		sink("cloudpickle.loads"),
		sink("dill.load"),
		sink("dill.loads"),
		sink("joblib.load"),
		sink("marshal.load"),
		sink("marshal.loads"),
		sink("shelve.open"),
		sink("yaml.load"),
		sink("yaml.load_all"),
		sink("yaml.unsafe_load"),
		sink("yaml.full_load"),
		sink("jsonpickle.decode"),
		sink("pandas.read_pickle"),
		sink("numpy.load"),
		sink("torch.load"),

		// live external input
		source("input", true),
		source("raw_input", true),
		source("sys.argv", true),
		source("sys.stdin.read", true),
		source("sys.stdin.readline", true),
		source("socket.recv", true),
		source("requests.get", true),
		source("requests.post", true),
		source("urllib.request.urlopen", true),

		// flask/werkzeug request surface
		source("request.form", true),
		source("request.form.get", true),
		source("request.args", true),
		source("request.args.get", true),
		source("request.values", true),
		source("request.values.get", true),
		source("request.json", true),
		source("request.get_json", true),
		source("request.data", true),
		source("request.get_data", true),
		source("request.files", true),
		source("request.cookies", true),
		source("request.headers.get", true),

		// django request surface
		source("request.POST", true),
		source("request.POST.get", true),
		source("request.GET", true),
		source("request.GET.get", true),
		source("request.body", true),

		// limited-reach values
		source("os.environ", false),
		source("os.environ.get", false),
		source("os.getenv", false),
	}
}
