package main

import (
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/domain/model"
)

func TestFlagParsing(t *testing.T) {
	convey.Convey("Given replay flag values", t, func() {
		convey.Convey("Sources are parsed case-insensitively", func() {
			srcs, err := parseSources("eLead, XTIME")
			convey.So(err, convey.ShouldBeNil)
			convey.So(srcs, convey.ShouldResemble, []model.SourceSystem{model.SourceElead, model.SourceXtime})
		})

		convey.Convey("An unknown source is an error", func() {
			_, err := parseSources("elead,salesforce")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("Secrets are split into a source map", func() {
			secrets, err := parseSecrets("elead=a=b, dripjobs=c")
			convey.So(err, convey.ShouldBeNil)
			convey.So(secrets[model.SourceElead], convey.ShouldEqual, "a=b")
			convey.So(secrets[model.SourceDripJobs], convey.ShouldEqual, "c")
		})

		convey.Convey("A pair without = is rejected", func() {
			_, err := parseSecrets("elead")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("Empty entries are skipped", func() {
			convey.So(splitList(" a,,b ,"), convey.ShouldResemble, []string{"a", "b"})
			convey.So(splitList(""), convey.ShouldBeNil)
		})
	})
}
