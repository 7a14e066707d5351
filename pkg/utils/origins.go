package utils

// OriginAllowList matches browser Origin headers against configured origins.
// A "*" entry allows any origin.
type OriginAllowList struct {
	any     bool
	origins map[string]bool
}

func NewOriginAllowList(origins []string) *OriginAllowList {
	l := &OriginAllowList{origins: make(map[string]bool, len(origins))}
	for _, origin := range origins {
		if origin == "*" {
			l.any = true
		}
		l.origins[origin] = true
	}
	return l
}

func (l *OriginAllowList) Allows(origin string) bool {
	return l.any || l.origins[origin]
}
