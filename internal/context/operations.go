package context

import (
	stdctx "context"
	"errors"
	"fmt"
	"os"

	"github.com/agentdeck/agentctl/internal/auth"
)

// ErrNoCurrentContext is returned when no context is selected.
var ErrNoCurrentContext = errors.New("no current context set")

// Current returns the selected context. AGENTCTL_CONTEXT overrides the
// current-context recorded in the file.
func (s *Store) Current() (*Context, string, error) {
	config, err := s.Load()
	if err != nil {
		return nil, "", err
	}

	name := config.CurrentContext
	if env := os.Getenv("AGENTCTL_CONTEXT"); env != "" {
		name = env
	}
	if name == "" {
		return nil, "", ErrNoCurrentContext
	}

	i, ok := config.findContext(name)
	if !ok {
		return nil, "", fmt.Errorf("context %q not found", name)
	}
	return &config.Contexts[i].Context, name, nil
}

// Use makes name the current context.
func (s *Store) Use(name string) error {
	config, err := s.Load()
	if err != nil {
		return err
	}
	if _, ok := config.findContext(name); !ok {
		return fmt.Errorf("context %q not found", name)
	}
	config.CurrentContext = name
	return s.Save(config)
}

// Login stores token for a context named name pointing at apiURL, creating
// or updating the context and its user, and selects it.
func (s *Store) Login(name, apiURL, token string) error {
	config, err := s.Load()
	if err != nil {
		return err
	}

	userName := name + "-user"
	ctx := Context{APIURL: apiURL, User: userName}
	if i, ok := config.findContext(name); ok {
		if config.Contexts[i].Context.User != "" {
			ctx.User = config.Contexts[i].Context.User
			userName = ctx.User
		}
		if apiURL == "" {
			ctx.APIURL = config.Contexts[i].Context.APIURL
		}
		config.Contexts[i].Context = ctx
	} else {
		config.Contexts = append(config.Contexts, NamedContext{Name: name, Context: ctx})
	}

	if i, ok := config.findUser(userName); ok {
		config.Users[i].User.Token = token
	} else {
		config.Users = append(config.Users, NamedUser{Name: userName, User: User{Token: token}})
	}

	config.CurrentContext = name
	return s.Save(config)
}

// Logout clears the token of the current context's user.
func (s *Store) Logout() error {
	config, err := s.Load()
	if err != nil {
		return err
	}
	i, ok := config.findContext(config.CurrentContext)
	if !ok {
		return ErrNoCurrentContext
	}
	if u, ok := config.findUser(config.Contexts[i].Context.User); ok {
		config.Users[u].User.Token = ""
	}
	return s.Save(config)
}

// Token returns the token of the current context's user, or "" if none.
func (s *Store) Token() (string, error) {
	ctx, _, err := s.Current()
	if err != nil {
		if errors.Is(err, ErrNoCurrentContext) {
			return "", nil
		}
		return "", err
	}

	config, err := s.Load()
	if err != nil {
		return "", err
	}
	if i, ok := config.findUser(ctx.User); ok {
		return config.Users[i].User.Token, nil
	}
	return "", nil
}

// TokenProvider returns an auth.TokenProvider backed by the store. The file is
// re-read on every call so a login in another shell takes effect immediately.
func (s *Store) TokenProvider() auth.TokenProvider {
	return auth.TokenFunc(func(ctx stdctx.Context) (string, error) {
		token, err := s.Token()
		if err != nil {
			return "", err
		}
		return auth.NewStaticProvider(token).Token(ctx)
	})
}
