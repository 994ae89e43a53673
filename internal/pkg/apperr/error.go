package apperr

import "fmt"

const (
	invalidArgumentCode = "INVALID_ARGUMENT"
	notFoundCode        = "NOT_FOUND"
	internalErrorCode   = "INTERNAL_ERROR"
	configCode          = "CONFIG_ERROR"
	blockFetchCode      = "BLOCKFETCH_ERROR"
	blockStoreCode      = "BLOCKSTORE_ERROR"
	blockStreamCode     = "BLOCKSTREAM_ERROR"
	blockSyncCode       = "BLOCKSYNC_ERROR"
)

type messageCause struct {
	Msg string
	Err error
}

func (e *messageCause) Message() string { return e.Msg }
func (e *messageCause) Cause() error    { return e.Err }
func (e *messageCause) Unwrap() error   { return e.Err }

func formatError(code, msg string, cause error) string {
	if cause != nil {
		return fmt.Sprintf("[%s] %s: %v", code, msg, cause)
	}
	return fmt.Sprintf("[%s] %s", code, msg)
}

type InvalidArgErr struct {
	messageCause
}

func NewInvalidArgErr(msg string, cause error) *InvalidArgErr {
	return &InvalidArgErr{messageCause: messageCause{Msg: msg, Err: cause}}
}

func (e *InvalidArgErr) Error() string { return formatError(invalidArgumentCode, e.Msg, e.Err) }
func (e *InvalidArgErr) Code() string  { return invalidArgumentCode }

type NotFoundErr struct {
	messageCause
}

func NewNotFoundErr(msg string, cause error) *NotFoundErr {
	return &NotFoundErr{messageCause: messageCause{Msg: msg, Err: cause}}
}

func (e *NotFoundErr) Error() string { return formatError(notFoundCode, e.Msg, e.Err) }
func (e *NotFoundErr) Code() string  { return notFoundCode }

type InternalErr struct {
	messageCause
}

func NewInternalErr(msg string, cause error) *InternalErr {
	return &InternalErr{messageCause: messageCause{Msg: msg, Err: cause}}
}

func (e *InternalErr) Error() string { return formatError(internalErrorCode, e.Msg, e.Err) }
func (e *InternalErr) Code() string  { return internalErrorCode }

// ConfigErr reports missing or malformed startup configuration.
type ConfigErr struct {
	messageCause
}

func NewConfigErr(msg string, cause error) *ConfigErr {
	return &ConfigErr{messageCause: messageCause{Msg: msg, Err: cause}}
}

func (e *ConfigErr) Error() string { return formatError(configCode, e.Msg, e.Err) }
func (e *ConfigErr) Code() string  { return configCode }

type BlockFetchErr struct {
	messageCause
}

func NewBlockFetchErr(msg string, cause error) *BlockFetchErr {
	return &BlockFetchErr{messageCause: messageCause{Msg: msg, Err: cause}}
}

func (e *BlockFetchErr) Error() string { return formatError(blockFetchCode, e.Msg, e.Err) }
func (e *BlockFetchErr) Code() string  { return blockFetchCode }

type BlockStoreErr struct {
	messageCause
}

func NewBlockStoreErr(msg string, cause error) *BlockStoreErr {
	return &BlockStoreErr{messageCause: messageCause{Msg: msg, Err: cause}}
}

func (e *BlockStoreErr) Error() string { return formatError(blockStoreCode, e.Msg, e.Err) }
func (e *BlockStoreErr) Code() string  { return blockStoreCode }

type BlockStreamErr struct {
	messageCause
}

func NewBlockStreamErr(msg string, cause error) *BlockStreamErr {
	return &BlockStreamErr{messageCause: messageCause{Msg: msg, Err: cause}}
}

func (e *BlockStreamErr) Error() string { return formatError(blockStreamCode, e.Msg, e.Err) }
func (e *BlockStreamErr) Code() string  { return blockStreamCode }

type BlockSyncErr struct {
	messageCause
}

func NewBlockSyncErr(msg string, cause error) *BlockSyncErr {
	return &BlockSyncErr{messageCause: messageCause{Msg: msg, Err: cause}}
}

func (e *BlockSyncErr) Error() string { return formatError(blockSyncCode, e.Msg, e.Err) }
func (e *BlockSyncErr) Code() string  { return blockSyncCode }
