package urlnorm

// Record is the transient view of one URL while it is being classified.
type Record struct {
	Raw               string
	Normalized        string
	Hostname          string
	RegistrableDomain string
	// Domain is the public-suffix aware registered domain, for display.
	Domain      string
	IsShortened bool
	// ResolvedURL is the normalized expansion of a shortened link.
	ResolvedURL string
	Malformed   bool
}

// NewRecord normalizes raw against base and fills in the derived fields. A
// malformed URL keeps Raw as Normalized and leaves the host fields empty.
func NewRecord(raw, base string) Record {
	rec := Record{Raw: raw}
	norm, err := Normalize(raw, base)
	if err != nil {
		rec.Normalized = raw
		rec.Malformed = true
		return rec
	}
	rec.Normalized = norm
	rec.Hostname = Hostname(norm)
	rec.RegistrableDomain = RegistrableDomain(rec.Hostname)
	rec.Domain = ETLDPlusOne(rec.Hostname)
	return rec
}

// Target is the URL the pipeline should evaluate: the resolved URL for
// shortened links, the normalized URL otherwise.
func (r Record) Target() string {
	if r.ResolvedURL != "" {
		return r.ResolvedURL
	}
	return r.Normalized
}
