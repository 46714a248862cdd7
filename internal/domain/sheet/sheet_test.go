package sheet_test

import (
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"github.com/veloclub/sortie/internal/domain/sheet"
)

func TestParse(t *testing.T) {
	convey.Convey("Given a wide-format attendance sheet", t, func() {
		convey.Convey("When parsing a well-formed sheet", func() {
			csvText := "groupe,prénom,nom,total,03/01,04/01,06/01\n" +
				"Route,Alice,Martin,2,1,1,\n" +
				"VTT,Bob,Durand,1,,,1\n"
			rows, issues, err := sheet.Parse(strings.NewReader(csvText), "2026")

			convey.Convey("Then all rows parse with expanded ISO dates", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(issues, convey.ShouldBeEmpty)
				convey.So(rows, convey.ShouldHaveLength, 2)

				convey.So(rows[0].Group, convey.ShouldEqual, "Route")
				convey.So(rows[0].FullName(), convey.ShouldEqual, "Alice Martin")
				convey.So(rows[0].PresentDates, convey.ShouldResemble, []string{"2026-01-03", "2026-01-04"})

				convey.So(rows[1].Group, convey.ShouldEqual, "VTT")
				convey.So(rows[1].PresentDates, convey.ShouldResemble, []string{"2026-01-06"})
			})
		})

		convey.Convey("When cells carry values other than 1", func() {
			csvText := "groupe,prénom,nom,total,03/01,04/01\n" +
				"Route,Alice,Martin,0,x,0\n"
			rows, issues, err := sheet.Parse(strings.NewReader(csvText), "2026")

			convey.Convey("Then only a trimmed exact 1 marks presence", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(issues, convey.ShouldBeEmpty)
				convey.So(rows[0].PresentDates, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When presence cells carry surrounding whitespace", func() {
			csvText := "groupe,prénom,nom,total,03/01\n" +
				"Route,Alice,Martin,1, 1 \n"
			rows, _, err := sheet.Parse(strings.NewReader(csvText), "2026")

			convey.So(err, convey.ShouldBeNil)
			convey.So(rows[0].PresentDates, convey.ShouldResemble, []string{"2026-01-03"})
		})

		convey.Convey("When a row misses the name cells", func() {
			csvText := "groupe,prénom,nom,total,03/01\n" +
				"Route,,Martin,0,\n" +
				"Route,Alice,Martin,1,1\n"
			rows, issues, err := sheet.Parse(strings.NewReader(csvText), "2026")

			convey.Convey("Then the bad row becomes an issue, not an error", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rows, convey.ShouldHaveLength, 1)
				convey.So(issues, convey.ShouldHaveLength, 1)
				convey.So(issues[0].Line, convey.ShouldEqual, 2)
				convey.So(issues[0].Reason, convey.ShouldContainSubstring, "missing first or last name")
			})
		})

		convey.Convey("When a row is shorter than the header", func() {
			csvText := "groupe,prénom,nom,total,03/01,04/01\n" +
				"Route,Alice\n"
			rows, issues, err := sheet.Parse(strings.NewReader(csvText), "2026")

			convey.Convey("Then the short row is skipped and reported", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rows, convey.ShouldBeEmpty)
				convey.So(issues, convey.ShouldHaveLength, 1)
			})
		})

		convey.Convey("When trailing columns are not dates", func() {
			csvText := "groupe,prénom,nom,total,03/01,notes\n" +
				"Route,Alice,Martin,1,1,hello\n"
			rows, issues, err := sheet.Parse(strings.NewReader(csvText), "2026")

			convey.Convey("Then non-date columns are ignored silently", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(issues, convey.ShouldBeEmpty)
				convey.So(rows[0].PresentDates, convey.ShouldResemble, []string{"2026-01-03"})
			})
		})

		convey.Convey("When the header has no date columns at all", func() {
			csvText := "groupe,prénom,nom\nRoute,Alice,Martin\n"
			_, _, err := sheet.Parse(strings.NewReader(csvText), "2026")

			convey.Convey("Then parsing fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the input is empty", func() {
			_, _, err := sheet.Parse(strings.NewReader(""), "2026")

			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
