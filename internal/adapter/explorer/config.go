package explorer

// Config holds the explorer REST endpoint.
//
// BaseURL is the API root, e.g. https://blockstream.info/api. A trailing slash
// is ignored. TimeoutSeconds bounds each request; zero keeps the transport
// default.
type Config struct {
	BaseURL        string `validate:"required,url"`
	TimeoutSeconds int    `validate:"gte=0"`
}
