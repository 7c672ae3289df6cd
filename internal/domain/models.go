package domain

// Node represents a physical machine under management
type Node struct {
	ID             int64    // Unique identifier
	SystemID       string   // Stable external identifier
	Hostname       string   // Hostname reported or assigned at enlistment
	CPUCount       int      // Logical CPU count derived from probe output
	CPUSpeed       int      // CPU speed in MHz
	Memory         int64    // Memory in MiB
	BootDiskID     *int64   // Block device the node boots from (optional)
	SkipStorage    bool     // Suppress block device reconciliation
	SkipNetworking bool     // Suppress network interface reconciliation
	Routers        []string // MAC addresses of neighbouring routers seen over LLDP
}

// BlockDevice represents a physical storage device attached to a node
type BlockDevice struct {
	ID        int64    // Unique identifier
	NodeID    int64    // Foreign key to Node
	Name      string   // Kernel name (e.g., "sda")
	Path      string   // Device path (e.g., "/dev/sda")
	IDPath    string   // Stable path (e.g., "/dev/disk/by-id/...")
	Size      int64    // Size in bytes
	BlockSize int64    // Logical block size in bytes
	Model     string   // Model string reported by the device
	Serial    string   // Serial number reported by the device
	Tags      []string // Derived tags (rotary, ssd, removable, ...)
}

// InterfaceType discriminates interface variants
type InterfaceType string

const (
	InterfaceTypePhysical InterfaceType = "physical"
	InterfaceTypeVLAN     InterfaceType = "vlan"
	InterfaceTypeBond     InterfaceType = "bond"
)

// Interface represents a network interface owned by a node
type Interface struct {
	ID         int64         // Unique identifier
	NodeID     int64         // Foreign key to Node
	Name       string        // Interface name (e.g., "eth0", "bond0")
	Type       InterfaceType // physical, vlan or bond
	MACAddress string        // Hardware address, lower case colon separated
	ParentIDs  []int64       // Ordered parent interfaces (vlan and bond only)
}

// IsPhysical reports whether the interface is a physical NIC
func (i Interface) IsPhysical() bool {
	return i.Type == InterfaceTypePhysical
}

// Subnet represents a locally configured IP network
type Subnet struct {
	ID          int64  // Unique identifier
	Name        string // Subnet name
	CIDR        string // Network in CIDR notation (e.g., "192.168.1.0/24")
	Gateway     string // Gateway IP address (optional)
	DNSServers  string // Comma-separated DNS server IPs
	Description string // Optional description
}

// IPAddressAllocType describes how an address came to be bound to an interface
type IPAddressAllocType string

const (
	IPAddressDiscovered IPAddressAllocType = "discovered"
	IPAddressSticky     IPAddressAllocType = "sticky"
)

// IPAddress represents an address bound to an interface
type IPAddress struct {
	ID          int64              // Unique identifier
	InterfaceID int64              // Foreign key to Interface
	SubnetID    *int64             // Subnet containing the address (optional)
	AllocType   IPAddressAllocType // How the address was obtained
	IP          string             // The address itself
	CreatedAt   string             // When the record was created
}

// Tag represents a named node classification
type Tag struct {
	ID         int64  // Unique identifier
	Name       string // Tag name (e.g., "virtual")
	Definition string // Matching expression, evaluated elsewhere
	Comment    string // Optional description
}

// NodeResult holds the raw output of a commissioning script run on a node
type NodeResult struct {
	ID           int64  // Unique identifier
	NodeID       int64  // Foreign key to Node
	Name         string // Script name
	ScriptResult int    // Exit status of the script
	Data         []byte // Raw output
	CreatedAt    string // When the result was first stored
	UpdatedAt    string // When the result was last replaced
}
