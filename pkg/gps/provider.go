package gps

// Provider interface defines the methods for location fix providers
type Provider interface {
	GetFix() (Fix, error)
	Close() error
}
