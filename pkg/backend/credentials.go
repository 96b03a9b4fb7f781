package backend

import "strings"

// Credential store keys for a backend named name.
func CookiesKey(name string) string { return name + " Cookies" }
func LoginKey(name string) string   { return name + " Login" }
func APIKeyKey(name string) string  { return name + " API Key" }

// LoadAuth reads a backend's stored auth state. The login entry is stored as
// "user:pass".
func LoadAuth(store CredentialStore, name string) AuthState {
	if store == nil {
		return AuthState{}
	}
	state := AuthState{
		Cookies: store.Get(CookiesKey(name)),
		APIKey:  store.Get(APIKeyKey(name)),
	}
	if login := store.Get(LoginKey(name)); login != "" {
		user, pass, ok := strings.Cut(login, ":")
		if ok {
			state.Username = user
			state.Password = pass
		}
	}
	return state
}

// ApplyStoredAuth fills in a backend's auth state from the store, keeping any
// field the backend already has when the store has nothing for it. It reports
// whether the backend is usable: true unless it requires auth and still has
// none.
func ApplyStoredAuth(b Backend, store CredentialStore) bool {
	desc := b.Descriptor()
	auth, ok := b.(Authenticator)
	if !ok {
		return !desc.RequiresAuth
	}

	current := auth.Auth()
	stored := LoadAuth(store, desc.Name)
	if stored.Cookies != "" {
		current.Cookies = stored.Cookies
	}
	if stored.APIKey != "" {
		current.APIKey = stored.APIKey
	}
	if stored.Username != "" {
		current.Username = stored.Username
		current.Password = stored.Password
	}
	auth.SetAuth(current)

	return !desc.RequiresAuth || !current.Empty()
}
