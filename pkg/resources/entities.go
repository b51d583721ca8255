package resources

// Entity schemas for MAAS payloads. Validation is deliberately shallow: each
// schema requires the identity fields a caller depends on and carries the
// commonly used attributes; unknown upstream fields are ignored.

// Machine is a deployed or deployable MAAS machine.
type Machine struct {
	SystemID     string   `json:"system_id" validate:"required"`
	Hostname     string   `json:"hostname"`
	FQDN         string   `json:"fqdn"`
	Architecture string   `json:"architecture"`
	StatusName   string   `json:"status_name"`
	PowerState   string   `json:"power_state"`
	CPUCount     int      `json:"cpu_count" validate:"gte=0"`
	Memory       int64    `json:"memory" validate:"gte=0"`
	Zone         NamedRef `json:"zone"`
	Pool         NamedRef `json:"pool"`
	TagNames     []string `json:"tag_names"`
	IPAddresses  []string `json:"ip_addresses"`
}

// Device is a non-deployable node (e.g. a BMC or an appliance).
type Device struct {
	SystemID    string   `json:"system_id" validate:"required"`
	Hostname    string   `json:"hostname"`
	FQDN        string   `json:"fqdn"`
	Zone        NamedRef `json:"zone"`
	IPAddresses []string `json:"ip_addresses"`
}

// Subnet is an IP subnet managed by MAAS.
type Subnet struct {
	ID         int      `json:"id" validate:"required"`
	Name       string   `json:"name"`
	CIDR       string   `json:"cidr" validate:"required,cidr"`
	Space      string   `json:"space"`
	GatewayIP  string   `json:"gateway_ip" validate:"omitempty,ip"`
	DNSServers []string `json:"dns_servers"`
	Managed    bool     `json:"managed"`
}

// Zone is an availability zone.
type Zone struct {
	ID          int    `json:"id"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// Domain is a DNS domain managed by MAAS.
type Domain struct {
	ID                  int    `json:"id"`
	Name                string `json:"name" validate:"required"`
	Authoritative       bool   `json:"authoritative"`
	TTL                 *int   `json:"ttl"`
	ResourceRecordCount int    `json:"resource_record_count" validate:"gte=0"`
}

// Tag is a machine tag.
type Tag struct {
	Name       string `json:"name" validate:"required"`
	Definition string `json:"definition"`
	Comment    string `json:"comment"`
	KernelOpts string `json:"kernel_opts"`
}

// NamedRef is the name-bearing reference MAAS embeds for zones and pools.
type NamedRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
