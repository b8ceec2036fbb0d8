package structured

// Kind is the internal classification of a document's declared type.
// It drives template choice and action affordances.
type Kind string

const (
	KindAlbum       Kind = "album"
	KindGeo         Kind = "geo"
	KindFlight      Kind = "flight"
	KindSignature   Kind = "signature"
	KindOutOfOffice Kind = "outOfOffice"
	KindLodging     Kind = "lodging"
	KindUnknown     Kind = "unknown"
)

var kindByType = map[string]Kind{
	"MusicAlbum":         KindAlbum,
	"Place":              KindGeo,
	"FlightReservation":  KindFlight,
	"EmailSignature":     KindSignature,
	"OutOfOffice":        KindOutOfOffice,
	"LodgingReservation": KindLodging,
}

// Classify maps a document's declared type to a Kind. It is total: any
// unrecognized type, or a nil document, classifies as KindUnknown.
func Classify(doc *Document) Kind {
	if doc == nil {
		return KindUnknown
	}
	if kind, ok := kindByType[doc.Type]; ok {
		return kind
	}
	return KindUnknown
}
