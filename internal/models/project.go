package models

// Project is the tenant that owns ingested events. The public key is the
// opaque bearer credential carried in a DSN, not a cryptographic key.
type Project struct {
	ID        int64  `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	PublicKey string `json:"-"`
}
