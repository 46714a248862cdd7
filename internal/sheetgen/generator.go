// Package sheetgen produces synthetic wide-format attendance sheets for
// load testing imports and seeding demo environments.
package sheetgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// Constants for random number generation.
const (
	randomFloatDivisor   = 1000000
	attendanceProfileMod = 5
)

// Attendance propensity profiles. Values are the probability that a
// member is present at any given outing.
const (
	caseRegular    = 0
	caseFrequent   = 1
	caseOccasional = 2
	caseRare       = 3
	caseWeekender  = 4

	regularRate    = 0.55
	frequentRate   = 0.85
	occasionalRate = 0.30
	rareRate       = 0.08
	weekenderRate  = 0.70
)

// Config controls the generated sheet.
type Config struct {
	// Year the sheet covers; date headers expand against it.
	Year int

	// Members is the number of member rows.
	Members int

	// Weeks is the number of ISO weeks covered. Each week contributes a
	// Saturday and a Sunday column, plus a Wednesday every other week.
	Weeks int
}

// firstSaturday returns the first Saturday of the year.
func firstSaturday(year int) time.Time {
	d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != time.Saturday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// getRandomInt returns a random int in [0, max) using crypto/rand.
func getRandomInt(max int) int {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(max)))
	return int(n.Int64())
}

var firstNames = []string{
	"Alice", "Bernard", "Camille", "Denis", "Élise", "François", "Gaëlle",
	"Henri", "Inès", "Julien", "Karine", "Luc", "Marion", "Nicolas",
	"Odile", "Pascal", "Quentin", "Renée", "Serge", "Thérèse",
}

var lastNames = []string{
	"Martin", "Durand", "Lefèvre", "Moreau", "Petit", "Roux", "Fournier",
	"Girard", "Bonnet", "Dupont", "Lambert", "Rousseau", "Vincent",
	"Muller", "Faure", "Blanc", "Garnier", "Chevalier", "Robin", "Clément",
}

var groups = []string{"Route", "VTT", "Gravel", "Loisir"}

// Generate builds the sheet as CSV records: a header row followed by one
// row per member. The total column is filled with the row's real count.
func Generate(cfg Config) ([][]string, error) {
	if cfg.Year < 1000 || cfg.Year > 9999 {
		return nil, fmt.Errorf("year %d out of range", cfg.Year)
	}
	if cfg.Members < 1 || cfg.Weeks < 1 {
		return nil, fmt.Errorf("members and weeks must be positive")
	}

	dates := outingDates(cfg.Year, cfg.Weeks)

	header := []string{"groupe", "prénom", "nom", "total"}
	for _, d := range dates {
		header = append(header, d.Format("02/01"))
	}

	records := [][]string{header}
	for i := 0; i < cfg.Members; i++ {
		records = append(records, memberRow(i, dates))
	}
	return records, nil
}

// outingDates lists the outing columns: weekend pairs plus a Wednesday
// every other week.
func outingDates(year, weeks int) []time.Time {
	var dates []time.Time
	saturday := firstSaturday(year)
	for w := 0; w < weeks; w++ {
		dates = append(dates, saturday, saturday.AddDate(0, 0, 1))
		if w%2 == 0 {
			dates = append(dates, saturday.AddDate(0, 0, 4))
		}
		saturday = saturday.AddDate(0, 0, 7)
	}
	return dates
}

// memberRow builds one member's row with a random attendance profile.
func memberRow(index int, dates []time.Time) []string {
	first := firstNames[getRandomInt(len(firstNames))]
	last := lastNames[getRandomInt(len(lastNames))]
	// Suffix the last name so generated members never collide.
	last = last + "-" + strconv.Itoa(index)
	group := groups[getRandomInt(len(groups))]

	rate, weekendOnly := attendanceProfile()

	row := []string{group, first, last, ""}
	total := 0
	for _, d := range dates {
		present := getRandomFloat() < rate
		if weekendOnly && d.Weekday() == time.Wednesday {
			present = false
		}
		if present {
			row = append(row, "1")
			total++
		} else {
			row = append(row, "")
		}
	}
	row[3] = strconv.Itoa(total)
	return row
}

// attendanceProfile picks a propensity for one member.
func attendanceProfile() (rate float64, weekendOnly bool) {
	switch getRandomInt(attendanceProfileMod) {
	case caseRegular:
		return regularRate, false
	case caseFrequent:
		return frequentRate, false
	case caseOccasional:
		return occasionalRate, false
	case caseRare:
		return rareRate, false
	case caseWeekender:
		return weekenderRate, true
	default:
		return regularRate, false
	}
}
