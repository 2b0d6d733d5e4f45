package errors

import "fmt"

// Code enumerates the mDNS/DNS-SD specific outcomes a responder or querier
// operation can report, beyond plain network/validation/wire failures.
//
// RFC 6762 and RFC 6763 describe most of these as rejection reasons for
// packet processing (silently dropped, never surfaced to a caller) or as
// API-level outcomes for the responder/querier lifecycle. Code values are
// grouped below by which side of that line they fall on.
type Code int

const (
	// CodeUnknown is the zero value; never returned deliberately.
	CodeUnknown Code = iota

	// CodeParamError indicates an invalid argument to an API call (nil
	// service, empty instance name, zero port, and similar).
	CodeParamError
	// CodeDataSizeError indicates an encoded record or message exceeded a
	// wire size limit (RDATA, TXT record set, or packet over 9000 bytes).
	CodeDataSizeError
	// CodeHostNameError indicates a supplied hostname fails RFC 1035 label
	// rules or the ".local" suffix requirement.
	CodeHostNameError
	// CodeCacheError indicates a cache arena operation failed (arena full,
	// corrupt slot, dangling reference).
	CodeCacheError
	// CodeNotEnabled indicates an operation was attempted on an interface
	// or instance that has not been enabled.
	CodeNotEnabled
	// CodeNotStarted indicates an operation was attempted before Start/New
	// completed initialization.
	CodeNotStarted
	// CodeAlreadyEnabled indicates Enable was called on an already-enabled
	// interface.
	CodeAlreadyEnabled
	// CodeUnsupportedType indicates a query or record type outside the
	// types this module understands.
	CodeUnsupportedType
	// CodeNoRR indicates a lookup found no matching resource record.
	CodeNoRR
	// CodeNoMoreEntries indicates cache/registry enumeration has been
	// exhausted.
	CodeNoMoreEntries

	// CodeExistSameService indicates ServiceAdd was called for a service
	// already registered with identical records; treated as a non-error
	// success by callers that check this code.
	CodeExistSameService
	// CodeExistSameQuery indicates a query identical to an already-active
	// one was requested; the existing query's results continue to apply.
	CodeExistSameQuery
	// CodeExistUniqueRR indicates the unique record being added already
	// exists unchanged.
	CodeExistUniqueRR
	// CodeExistSharedRR indicates the shared record being added already
	// exists unchanged.
	CodeExistSharedRR

	// CodeNameMismatch indicates an inbound packet's question or answer
	// name does not match anything known; the packet is dropped silently.
	CodeNameMismatch
	// CodeExceedMaxLabel indicates a name in an inbound packet exceeds
	// RFC 1035 §3.1 label or name length limits; the packet is dropped.
	CodeExceedMaxLabel
	// CodeUDPPortError indicates an inbound packet did not arrive from
	// UDP port 5353 as RFC 6762 §11 requires; the packet is dropped.
	CodeUDPPortError
	// CodeDestAddressError indicates an inbound packet's destination
	// address was neither the mDNS multicast group nor the local unicast
	// address; the packet is dropped.
	CodeDestAddressError
	// CodeNotLocalLink indicates an inbound packet's source address is not
	// on the same link as the receiving interface; the packet is dropped
	// per RFC 6762 §11.
	CodeNotLocalLink
	// CodeAuthError indicates a received update to a unique record failed
	// RFC 6762 §9 authority verification and was rejected.
	CodeAuthError
)

// String returns the taxonomy name used in log output and test assertions.
func (c Code) String() string {
	switch c {
	case CodeParamError:
		return "PARAM_ERROR"
	case CodeDataSizeError:
		return "DATA_SIZE_ERROR"
	case CodeHostNameError:
		return "HOST_NAME_ERROR"
	case CodeCacheError:
		return "CACHE_ERROR"
	case CodeNotEnabled:
		return "NOT_ENABLED"
	case CodeNotStarted:
		return "NOT_STARTED"
	case CodeAlreadyEnabled:
		return "ALREADY_ENABLED"
	case CodeUnsupportedType:
		return "UNSUPPORTED_TYPE"
	case CodeNoRR:
		return "NO_RR"
	case CodeNoMoreEntries:
		return "NO_MORE_ENTRIES"
	case CodeExistSameService:
		return "EXIST_SAME_SERVICE"
	case CodeExistSameQuery:
		return "EXIST_SAME_QUERY"
	case CodeExistUniqueRR:
		return "EXIST_UNIQUE_RR"
	case CodeExistSharedRR:
		return "EXIST_SHARED_RR"
	case CodeNameMismatch:
		return "NAME_MISMATCH"
	case CodeExceedMaxLabel:
		return "EXCEED_MAX_LABEL"
	case CodeUDPPortError:
		return "UDP_PORT_ERROR"
	case CodeDestAddressError:
		return "DEST_ADDRESS_ERROR"
	case CodeNotLocalLink:
		return "NOT_LOCAL_LINK"
	case CodeAuthError:
		return "AUTH_ERROR"
	default:
		return "UNKNOWN"
	}
}

// IsExist reports whether this code represents an "already exists
// unchanged" outcome that callers should treat as success, not failure.
func (c Code) IsExist() bool {
	switch c {
	case CodeExistSameService, CodeExistSameQuery, CodeExistUniqueRR, CodeExistSharedRR:
		return true
	default:
		return false
	}
}

// StateError represents a lifecycle, cache, or protocol-compliance outcome
// that does not fit NetworkError/ValidationError/WireFormatError.
//
// FR-style taxonomy per the responder/querier lifecycle and RFC 6762 §10-11
// packet-acceptance rules.
type StateError struct {
	// Operation describes what was attempted (e.g., "service add", "packet accept").
	Operation string
	// Code classifies the outcome.
	Code Code
	// Err is the underlying error, if any.
	Err error
	// Details provides troubleshooting context.
	Details string
}

// Error implements the error interface for StateError.
func (e *StateError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s during %s: %s", e.Code, e.Operation, e.Details)
	}
	return fmt.Sprintf("%s during %s", e.Code, e.Operation)
}

// Unwrap returns the underlying error, enabling error chain inspection with errors.Is/As.
func (e *StateError) Unwrap() error {
	return e.Err
}
