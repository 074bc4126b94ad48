package debug

type Tselector string

// ALWAYS
const (
	ALWAYS Tselector = "ALWAYS"
	ERROR  Tselector = "ERROR"
	NEVER  Tselector = "NEVER"
)

// ERR
const (
	ERR Tselector = "_ERR"
)

// Tests
const (
	TEST  Tselector = "TEST"
	TEST1 Tselector = "TEST1"
)

// Syscall layer
const (
	NAMEI     Tselector = "NAMEI"
	NAMEI_ERR Tselector = NAMEI + ERR
	SYSCALL   Tselector = "SYSCALL"
	RPCCLNT   Tselector = "RPCCLNT"
	P2SCODEC  Tselector = "P2SCODEC"
	MALLOC    Tselector = "MALLOC"
	FDCLNT    Tselector = "FDCLNT"
	USERMEM   Tselector = "USERMEM"
	HOMENODE  Tselector = "HOMENODE"
)

// Transport
const (
	NETCLNT     Tselector = "NETCLNT"
	NETCLNT_ERR Tselector = NETCLNT + ERR
	NETSRV      Tselector = "NETSRV"
	NETSRV_ERR  Tselector = NETSRV + ERR
	FRAME       Tselector = "FRAME"
)

// Storage node
const (
	STORESRV     Tselector = "STORESRV"
	STORESRV_ERR Tselector = STORESRV + ERR
)

const (
	CONFIG Tselector = "CONFIG"
)
