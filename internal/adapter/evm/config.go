package evm

// Config holds the JSON-RPC endpoint of an EVM node.
//
// RPCURL accepts http(s) and ws(s) endpoints. TimeoutSeconds bounds each call;
// zero selects the default of 10 seconds.
type Config struct {
	RPCURL         string `validate:"required,uri"`
	TimeoutSeconds int    `validate:"gte=0"`
}
