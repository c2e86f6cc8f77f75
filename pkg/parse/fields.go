package parse

import (
	"regexp"

	"github.com/raterudder/gukk/pkg/types"
)

var lastIndicationRegexp = regexp.MustCompile(`^.+показани.+? (\d+) от ([\d\p{L}_.]+\d)г?`)

// LastIndication scans lines for "... показание N от D" and returns N and D
// from the first line that matches. Both are nil when no line matches.
func LastIndication(lines ...string) (*int64, *string) {
	for _, l := range lines {
		m := lastIndicationRegexp.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		date := m[2]
		return Int(m[1]), &date
	}
	return nil, nil
}

// LastIndicationFromInfo is LastIndication over a meter's info.
func LastIndicationFromInfo(info types.MeterInfo) (*int64, *string) {
	return LastIndication(info.Lines()...)
}

// DetailKind is the meaning of an account detail row.
type DetailKind int

const (
	DetailUnknown DetailKind = iota
	DetailDebt
	DetailCredit
	DetailCharged
	DetailArea
)

func (k DetailKind) String() string {
	switch k {
	case DetailDebt:
		return "debt"
	case DetailCredit:
		return "credit"
	case DetailCharged:
		return "charged"
	case DetailArea:
		return "area"
	default:
		return "unknown"
	}
}

var detailPatterns = []struct {
	kind DetailKind
	re   *regexp.Regexp
}{
	{DetailDebt, regexp.MustCompile(`^Задолженность \(основные услуги\)`)},
	{DetailCredit, regexp.MustCompile(`^Переплата \(основные услуги\)`)},
	{DetailCharged, regexp.MustCompile(`^Начисление за (.+) \(основные услуги\)`)},
	{DetailArea, regexp.MustCompile(`^Оплачиваемая площадь`)},
}

// ClassifyDetail returns what an account detail row label describes.
func ClassifyDetail(label string) DetailKind {
	for _, p := range detailPatterns {
		if p.re.MatchString(label) {
			return p.kind
		}
	}
	return DetailUnknown
}

// DetailRow is a label/value pair from the account detail endpoint.
type DetailRow struct {
	Name  string
	Value string
}

// Detail folds detail rows into an AccountDetail. Debt and credit rows both
// set the balance; later rows win. Unknown rows are ignored. A known row with
// an unparseable value is still marked as present.
func Detail(rows []DetailRow) types.AccountDetail {
	var d types.AccountDetail
	for _, r := range rows {
		switch ClassifyDetail(r.Name) {
		case DetailDebt, DetailCredit:
			d.Balance = Decimal(r.Value)
			d.HasBalance = true
		case DetailCharged:
			d.Charged = Decimal(r.Value)
			d.HasCharged = true
		case DetailArea:
			d.Area = Decimal(r.Value)
			d.HasArea = true
		}
	}
	return d
}
