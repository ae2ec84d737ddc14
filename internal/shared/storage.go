package shared

// Storage keys holding the signed-in identity and its bearer token. Both are
// written and cleared together.
const (
	IdentityKey = "user"
	TokenKey    = "token"
)

// Storage is the per-browser key-value state the console persists between
// requests. *Session implements it.
type Storage interface {
	Get(key string) string
	Set(key, value string)
	Delete(key string)
}

// MemoryStorage is a map backed Storage, handy where no session exists.
type MemoryStorage map[string]string

// Get implements Storage.
func (m MemoryStorage) Get(key string) string { return m[key] }

// Set implements Storage.
func (m MemoryStorage) Set(key, value string) { m[key] = value }

// Delete implements Storage.
func (m MemoryStorage) Delete(key string) { delete(m, key) }
