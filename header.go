package bootimg

// Field is a bit in a Header's supported_fields mask. Each per-format
// reader declares, once, which subset of fields it populates; writers
// reject a Set* call for a field their format doesn't support.
type Field uint32

const (
	FieldBoardName Field = 1 << iota
	FieldKernelCmdline
	FieldPageSize
	FieldKernelAddress
	FieldRamdiskAddress
	FieldSecondAddress
	FieldTagsAddress
	FieldEntrypointAddress
	FieldSonyIplAddress
	FieldSonyRpmAddress
	FieldSonyAppsblAddress
)

const (
	maxBoardNameLen = bootNameSize - 1
	maxCmdlineLen   = bootArgsSize + bootExtraArgsSize - 1
)

// Header is the uniform in-memory representation of a boot image's
// metadata. Every field is optional; absent is distinct from zero, which
// is why each is stored behind a pointer rather than a bare value plus a
// "set" bool — nil reads exactly as "caller never asked".
type Header struct {
	supportedFields Field

	boardName *string
	cmdline   *string

	pageSize *uint32

	kernelAddress     *uint32
	ramdiskAddress    *uint32
	secondAddress     *uint32
	tagsAddress       *uint32
	entrypointAddress *uint32
	iplAddress        *uint32
	rpmAddress        *uint32
	appsblAddress     *uint32
}

// NewHeader returns an empty Header with no supported fields. Per-format
// readers call SetSupportedFields immediately after creating one.
func NewHeader() *Header {
	return &Header{}
}

func (h *Header) SupportedFields() Field {
	return h.supportedFields
}

// SetSupportedFields is only meant to be called once, by the format reader
// that owns this Header, before any field setter runs: supported_fields is
// constant for the lifetime of the in-memory Header after that.
func (h *Header) SetSupportedFields(f Field) {
	h.supportedFields = f
}

func (h *Header) supports(f Field) bool {
	return h.supportedFields&f != 0
}

func fieldUnsupported(name string) error {
	return newErr(CategoryGeneric, ErrFieldUnsupported, "field %s is not supported by this format", name)
}

func tooLong(name string, got, max int) error {
	return newErr(CategoryGeneric, ErrTooLong, "%s is %d bytes, exceeds maximum of %d", name, got, max)
}

func (h *Header) BoardName() (string, bool) {
	if h.boardName == nil {
		return "", false
	}
	return *h.boardName, true
}

func (h *Header) SetBoardName(name string) error {
	if !h.supports(FieldBoardName) {
		return fieldUnsupported("board_name")
	}
	if len(name) > maxBoardNameLen {
		return tooLong("board_name", len(name), maxBoardNameLen)
	}
	if name == "" {
		h.boardName = nil
		return nil
	}
	h.boardName = &name
	return nil
}

func (h *Header) KernelCmdline() (string, bool) {
	if h.cmdline == nil {
		return "", false
	}
	return *h.cmdline, true
}

func (h *Header) SetKernelCmdline(cmdline string) error {
	if !h.supports(FieldKernelCmdline) {
		return fieldUnsupported("kernel_cmdline")
	}
	if len(cmdline) > maxCmdlineLen {
		return tooLong("kernel_cmdline", len(cmdline), maxCmdlineLen)
	}
	if cmdline == "" {
		h.cmdline = nil
		return nil
	}
	h.cmdline = &cmdline
	return nil
}

func (h *Header) PageSize() (uint32, bool) {
	if h.pageSize == nil {
		return 0, false
	}
	return *h.pageSize, true
}

func (h *Header) SetPageSize(v uint32) error {
	if !h.supports(FieldPageSize) {
		return fieldUnsupported("page_size")
	}
	if v == 0 {
		h.pageSize = nil
		return nil
	}
	h.pageSize = &v
	return nil
}

func u32Getter(p *uint32) (uint32, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

func (h *Header) setU32(field Field, name string, dst **uint32, v uint32) error {
	if !h.supports(field) {
		return fieldUnsupported(name)
	}
	if v == 0 {
		*dst = nil
		return nil
	}
	*dst = &v
	return nil
}

func (h *Header) KernelAddress() (uint32, bool) { return u32Getter(h.kernelAddress) }
func (h *Header) SetKernelAddress(v uint32) error {
	return h.setU32(FieldKernelAddress, "kernel_address", &h.kernelAddress, v)
}

func (h *Header) RamdiskAddress() (uint32, bool) { return u32Getter(h.ramdiskAddress) }
func (h *Header) SetRamdiskAddress(v uint32) error {
	return h.setU32(FieldRamdiskAddress, "ramdisk_address", &h.ramdiskAddress, v)
}

func (h *Header) SecondbootAddress() (uint32, bool) { return u32Getter(h.secondAddress) }
func (h *Header) SetSecondbootAddress(v uint32) error {
	return h.setU32(FieldSecondAddress, "secondboot_address", &h.secondAddress, v)
}

func (h *Header) KernelTagsAddress() (uint32, bool) { return u32Getter(h.tagsAddress) }
func (h *Header) SetKernelTagsAddress(v uint32) error {
	return h.setU32(FieldTagsAddress, "kernel_tags_address", &h.tagsAddress, v)
}

func (h *Header) EntrypointAddress() (uint32, bool) { return u32Getter(h.entrypointAddress) }
func (h *Header) SetEntrypointAddress(v uint32) error {
	return h.setU32(FieldEntrypointAddress, "entrypoint_address", &h.entrypointAddress, v)
}

func (h *Header) SonyIplAddress() (uint32, bool) { return u32Getter(h.iplAddress) }
func (h *Header) SetSonyIplAddress(v uint32) error {
	return h.setU32(FieldSonyIplAddress, "sony_ipl_address", &h.iplAddress, v)
}

func (h *Header) SonyRpmAddress() (uint32, bool) { return u32Getter(h.rpmAddress) }
func (h *Header) SetSonyRpmAddress(v uint32) error {
	return h.setU32(FieldSonyRpmAddress, "sony_rpm_address", &h.rpmAddress, v)
}

func (h *Header) SonyAppsblAddress() (uint32, bool) { return u32Getter(h.appsblAddress) }
func (h *Header) SetSonyAppsblAddress(v uint32) error {
	return h.setU32(FieldSonyAppsblAddress, "sony_appsbl_address", &h.appsblAddress, v)
}

// Equal compares two Headers field-wise over the intersection of their
// supported fields.
func (h *Header) Equal(other *Header) bool {
	common := h.supportedFields & other.supportedFields

	if common&FieldBoardName != 0 {
		a, _ := h.BoardName()
		b, _ := other.BoardName()
		if a != b {
			return false
		}
	}
	if common&FieldKernelCmdline != 0 {
		a, _ := h.KernelCmdline()
		b, _ := other.KernelCmdline()
		if a != b {
			return false
		}
	}
	if common&FieldPageSize != 0 {
		a, _ := h.PageSize()
		b, _ := other.PageSize()
		if a != b {
			return false
		}
	}
	type pair struct {
		field Field
		get   func(*Header) (uint32, bool)
	}
	pairs := []pair{
		{FieldKernelAddress, (*Header).KernelAddress},
		{FieldRamdiskAddress, (*Header).RamdiskAddress},
		{FieldSecondAddress, (*Header).SecondbootAddress},
		{FieldTagsAddress, (*Header).KernelTagsAddress},
		{FieldEntrypointAddress, (*Header).EntrypointAddress},
		{FieldSonyIplAddress, (*Header).SonyIplAddress},
		{FieldSonyRpmAddress, (*Header).SonyRpmAddress},
		{FieldSonyAppsblAddress, (*Header).SonyAppsblAddress},
	}
	for _, p := range pairs {
		if common&p.field == 0 {
			continue
		}
		a, _ := p.get(h)
		b, _ := p.get(other)
		if a != b {
			return false
		}
	}
	return true
}
