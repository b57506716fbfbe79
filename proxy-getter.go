package undetected

type ProxyGetter interface {

	// Get proxy for the next browser launch.
	//
	// Returns proxy as string and error if has
	GetProxy() (string, error)
}

// StaticProxy wraps a fixed proxy address into a ProxyGetter.
func StaticProxy(address string) ProxyGetter {
	return staticProxy(address)
}

type staticProxy string

func (p staticProxy) GetProxy() (string, error) {
	return string(p), nil
}
