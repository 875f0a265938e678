package env

import "fmt"

const (
	LoginURLVar      = "LOGIN_URL"
	LoginUsernameVar = "LOGIN_USERNAME"
	LoginPasswordVar = "LOGIN_PASSWORD"
)

// MissingConfigError names a required variable that is unset or empty.
type MissingConfigError struct {
	Name string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("missing configuration: %s must be set as an environment variable or in a .env file", e.Name)
}

// LoginConfig holds the credentials for direct login.
type LoginConfig struct {
	URL      string
	Username string
	Password string
}

// HasLoginURL reports whether direct login is configured.
func HasLoginURL(lookup LookupFunc) bool {
	return lookup.Get(LoginURLVar) != ""
}

// LoadLoginConfig reads the direct-login variables. The first empty one is
// reported as a *MissingConfigError, checked in URL, username, password order.
func LoadLoginConfig(lookup LookupFunc) (*LoginConfig, error) {
	cfg := &LoginConfig{
		URL:      lookup.Get(LoginURLVar),
		Username: lookup.Get(LoginUsernameVar),
		Password: lookup.Get(LoginPasswordVar),
	}

	required := []struct {
		name  string
		value string
	}{
		{LoginURLVar, cfg.URL},
		{LoginUsernameVar, cfg.Username},
		{LoginPasswordVar, cfg.Password},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, &MissingConfigError{Name: r.name}
		}
	}

	return cfg, nil
}
