package sign

// NoSigner is the zero-value Signer: it produces no signature and no
// certificates. Builders use it when no signing option was requested.
type NoSigner struct{}

func (NoSigner) Style() string             { return "" }
func (NoSigner) SignatureLen() int         { return 0 }
func (NoSigner) Certificates() [][]byte    { return nil }
func (NoSigner) Sign([]byte) ([]byte, error) { return nil, nil }
