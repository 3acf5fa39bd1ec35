package registry

// ServiceInstance is one published XML-RPC endpoint.
type ServiceInstance struct {
	Addr    string // Endpoint URL, e.g. "http://10.0.0.5:8080/RPC2"
	Weight  int    // Weight for load balancing
	Version string
}

type Registry interface {
	Register(serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(serviceName string, addr string) error
	Discover(serviceName string) ([]ServiceInstance, error)
	Watch(serviceName string) <-chan []ServiceInstance
}
