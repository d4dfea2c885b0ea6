package syncstate

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// AccessType classifies an access mask by the kind of hazard it leaves behind
type AccessType int32

const (
	// AccessNone is an empty access mask
	AccessNone AccessType = iota
	// AccessReadPending is an access mask that only reads
	AccessReadPending
	// AccessWritePending is an access mask with at least one write bit
	AccessWritePending
)

var accessTypeMapping = map[AccessType]string{
	AccessNone:         "AccessNone",
	AccessReadPending:  "AccessReadPending",
	AccessWritePending: "AccessWritePending",
}

func (t AccessType) String() string {
	return accessTypeMapping[t]
}

// ReadAccessMask holds every access bit that only reads memory
var ReadAccessMask = core1_0.AccessIndirectCommandRead |
	core1_0.AccessIndexRead |
	core1_0.AccessVertexAttributeRead |
	core1_0.AccessUniformRead |
	core1_0.AccessInputAttachmentRead |
	core1_0.AccessShaderRead |
	core1_0.AccessColorAttachmentRead |
	core1_0.AccessDepthStencilAttachmentRead |
	core1_0.AccessTransferRead |
	core1_0.AccessHostRead |
	core1_0.AccessMemoryRead

// WriteAccessMask holds every access bit that writes memory
var WriteAccessMask = core1_0.AccessShaderWrite |
	core1_0.AccessColorAttachmentWrite |
	core1_0.AccessDepthStencilAttachmentWrite |
	core1_0.AccessTransferWrite |
	core1_0.AccessHostWrite |
	core1_0.AccessMemoryWrite

// ClassifyAccess determines the AccessType of an access mask. Any write bit makes the whole
// mask a write. Bits that are neither known reads nor known writes return ErrUnknownAccessFlags.
func ClassifyAccess(mask core1_0.AccessFlags) (AccessType, error) {
	if mask == 0 {
		return AccessNone, nil
	}

	if mask&WriteAccessMask != 0 {
		return AccessWritePending, nil
	}

	if mask&ReadAccessMask == mask {
		return AccessReadPending, nil
	}

	return AccessNone, errors.Wrapf(ErrUnknownAccessFlags, "access mask %#x contains unrecognized bits %#x", int64(mask), int64(mask&^ReadAccessMask))
}

func mustClassifyAccess(mask core1_0.AccessFlags) AccessType {
	accessType, err := ClassifyAccess(mask)
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "recorded access mask failed classification"))
	}
	return accessType
}
