package apperr

// BaseError defines the interface for application-specific errors.
type BaseError interface {
	error
	Code() string
	Message() string
	Cause() error
}

var (
	_ BaseError = (*InvalidArgErr)(nil)
	_ BaseError = (*NotFoundErr)(nil)
	_ BaseError = (*InternalErr)(nil)
	_ BaseError = (*ConfigErr)(nil)
	_ BaseError = (*BlockFetchErr)(nil)
	_ BaseError = (*BlockStoreErr)(nil)
	_ BaseError = (*BlockStreamErr)(nil)
	_ BaseError = (*BlockSyncErr)(nil)
)
