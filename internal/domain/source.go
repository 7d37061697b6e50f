package domain

// SourceKind distinguishes how a resolved media source is read.
type SourceKind string

const (
	SourceRemoteDirect SourceKind = "remote"
	SourceLocalFile    SourceKind = "local"
)

// DefaultQualityCeiling bounds the selected height when a request does not
// name one.
const DefaultQualityCeiling = 720

// MediaSourceDescriptor is the immutable result of resolving a video id.
type MediaSourceDescriptor struct {
	VideoID VideoID
	Kind    SourceKind
	// Locator is an absolute URL for remote sources and a filesystem path for
	// local ones.
	Locator  string
	MimeType string
	// TotalSize is 0 when the size is not known until the source is read.
	TotalSize          int64
	SupportsByteRanges bool
	Height             int
	Strategy           string
}

func (d MediaSourceDescriptor) SizeKnown() bool {
	return d.TotalSize > 0
}
