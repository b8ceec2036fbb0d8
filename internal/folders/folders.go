// Package folders implements the special-folder taxonomy lookup used to
// gate action buttons.
package folders

import "strings"

// Service answers whether a folder is special (sent, drafts, trash, junk
// by default) or a descendant of one. Descendant identity is a substring
// match on the folder id, matching the host convention where children
// embed the parent name (e.g. "sent/2023").
type Service struct {
	special []string
}

func NewService(special []string) *Service {
	names := make([]string, 0, len(special))
	for _, s := range special {
		s = strings.TrimSpace(strings.ToLower(s))
		if s != "" {
			names = append(names, s)
		}
	}
	return &Service{special: names}
}

func (s *Service) IsSpecial(folderID string) bool {
	id := strings.ToLower(folderID)
	for _, name := range s.special {
		if id == name {
			return true
		}
	}
	return false
}

// IsChildOfSpecial reports a folder that contains a special-folder name
// but is not itself that special folder.
func (s *Service) IsChildOfSpecial(folderID string) bool {
	if s.IsSpecial(folderID) {
		return false
	}
	id := strings.ToLower(folderID)
	for _, name := range s.special {
		if strings.Contains(id, name) {
			return true
		}
	}
	return false
}

func (s *Service) IsSpecialOrChildOfSpecial(folderID string) bool {
	return s.IsSpecial(folderID) || s.IsChildOfSpecial(folderID)
}
