package context

// Config is the kubectl-style configuration file.
type Config struct {
	APIVersion     string         `yaml:"apiVersion"`
	Kind           string         `yaml:"kind"`
	CurrentContext string         `yaml:"current-context"`
	Contexts       []NamedContext `yaml:"contexts"`
	Users          []NamedUser    `yaml:"users"`
}

// NamedContext is a named Context.
type NamedContext struct {
	Name    string  `yaml:"name"`
	Context Context `yaml:"context"`
}

// Context selects a backend and the user whose token to present to it.
type Context struct {
	APIURL string `yaml:"api-url"`
	User   string `yaml:"user"`
}

// NamedUser is a named User.
type NamedUser struct {
	Name string `yaml:"name"`
	User User   `yaml:"user"`
}

// User holds credentials.
type User struct {
	Token string `yaml:"token"`
}

func (c *Config) findContext(name string) (int, bool) {
	for i, nc := range c.Contexts {
		if nc.Name == name {
			return i, true
		}
	}
	return -1, false
}

func (c *Config) findUser(name string) (int, bool) {
	for i, nu := range c.Users {
		if nu.Name == name {
			return i, true
		}
	}
	return -1, false
}
