package entities

// ATCGroup is one node of the ATC classification (dlp_atc).
type ATCGroup struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	NameEN string `json:"name_en,omitempty"`
}

// ATCLevel returns the hierarchy level (1-5) for a code length, 0 when the
// length is not a valid ATC code length.
func ATCLevel(code string) int {
	switch len(code) {
	case 1:
		return 1
	case 3:
		return 2
	case 4:
		return 3
	case 5:
		return 4
	case 7:
		return 5
	default:
		return 0
	}
}

// ATCCodeLength is the inverse of ATCLevel.
func ATCCodeLength(level int) int {
	switch level {
	case 1:
		return 1
	case 2:
		return 3
	case 3:
		return 4
	case 4:
		return 5
	case 5:
		return 7
	default:
		return 0
	}
}

// ATCParent returns the parent code one level up, "" for top-level codes.
func ATCParent(code string) string {
	level := ATCLevel(code)
	if level <= 1 {
		return ""
	}
	return code[:ATCCodeLength(level-1)]
}

// DocumentNames holds the PIL and SmPC file names of a medicine (dlp_nazvydokumentu).
type DocumentNames struct {
	Code string `json:"sukl_code"`
	PIL  string `json:"pil,omitempty"`
	SPC  string `json:"spc,omitempty"`
}
