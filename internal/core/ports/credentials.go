package ports

// CredentialVerifier hashes secrets and checks secrets against stored hashes.
type CredentialVerifier interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
}
