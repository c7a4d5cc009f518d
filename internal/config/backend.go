package config

// ConfigBackend abstracts platform-specific config storage.
// macOS uses UserDefaults (via the `defaults` CLI); every other platform
// uses a flat JSON file under $XDG_CONFIG_HOME/ragent.
//
// Getters report ok=false for keys that were never set. A stored value of
// the wrong type is an error, not a miss.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	GetFloat(key string) (val float64, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	SetFloat(key string, val float64) error
	Delete(key string) error
}
