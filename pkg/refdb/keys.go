package refdb

import (
	"regexp"
	"strings"
)

// Header formats, one per upstream database:
//
//	BacMet   >BAC0001|abeM|tr|Q5FAM9|Q5FAM9_ACIBA
//	CARD     >gb|ACT97415.1|ARO:3002999|CblA-1 [mixed culture bacterium ...]
//	VFDB     >VFG037176(gb|WP_001081735) (plc1) phospholipase C [Phospholipase C (VF0470) - Exotoxin (VFC0235)] [...]
//	MEGARes  >MEG_1|Drugs|Aminoglycosides|Aminoglycoside-resistant_16S...|A16S|RequiresSNPConfirmation
func parseHeader(dbName, line string) (accession, gene, class, mechanism string, ok bool) {
	switch dbName {
	case "bacmet":
		return parseBacMet(line)
	case "card":
		return parseCARD(line)
	case "vfdb":
		return parseVFDB(line)
	case "megares":
		return parseMEGARes(line)
	}
	return "", "", "", "", false
}

func parseBacMet(line string) (string, string, string, string, bool) {
	parts := strings.Split(line, "|")
	if len(parts) < 2 {
		return "", "", "", "", false
	}
	accession := strings.TrimPrefix(parts[0], ">")
	gene := parts[1]
	return accession, gene, "", "", true
}

func parseCARD(line string) (string, string, string, string, bool) {
	parts := strings.Split(line, "|")
	if len(parts) < 4 {
		return "", "", "", "", false
	}
	accession := parts[1]
	gene := strings.Fields(parts[3])
	if len(gene) == 0 {
		return "", "", "", "", false
	}
	return accession, gene[0], "", "", true
}

// "... (VF0470) - Exotoxin (VFC0235)" -> "Exotoxin"
var vfdbMechRe = regexp.MustCompile(`\)\s-\s([A-Za-z/\-\s]*)\s\(`)

func parseVFDB(line string) (string, string, string, string, bool) {

	mech := "Unknown"
	if m := vfdbMechRe.FindStringSubmatch(line); len(m) == 2 {
		mech = m[1]
	}

	start := strings.Index(line, "(")
	if start < 0 {
		return "", "", "", "", false
	}
	end := strings.Index(line[start:], ")")
	if end < 0 {
		return "", "", "", "", false
	}
	end += start

	accession := line[start+1 : end]
	if i := strings.LastIndex(accession, "|"); i >= 0 {
		accession = accession[i+1:]
	}

	// Gene name sits in the second parenthesis pair when present.
	gene := accession
	if second := strings.Index(line[end:], "("); second >= 0 {
		second += end
		if close := strings.Index(line[second:], ")"); close >= 0 {
			gene = line[second+1 : second+close]
		}
	}

	return accession, gene, "", mech, true
}

func parseMEGARes(line string) (string, string, string, string, bool) {
	parts := strings.Split(line, "|")
	if len(parts) < 5 {
		return "", "", "", "", false
	}
	accession := strings.TrimPrefix(parts[0], ">")
	class := strings.TrimSpace(parts[2])
	mechanism := strings.TrimSpace(parts[3])
	gene := strings.TrimSpace(parts[4])
	if gene == "" {
		return "", "", "", "", false
	}
	return accession, gene, class, mechanism, true
}
