package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with defaults", func() {
			So(Init(), ShouldBeNil)

			Convey("Then Get returns a usable logger", func() {
				So(Get(), ShouldNotBeNil)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When initialized with the json format", func() {
			var buf bytes.Buffer
			So(Init(WithFormat("JSON"), WithWriter(&buf)), ShouldBeNil)

			Get().Info(context.Background(), "ingested",
				String("source", "elead"), Int("records", 3), Bool("duplicate", false),
				Float64("ms", 1.5), Error(errors.New("boom")))

			Convey("Then each line is a JSON object carrying the fields", func() {
				var line map[string]any
				So(json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line), ShouldBeNil)
				So(line["msg"], ShouldEqual, "ingested")
				So(line["records"], ShouldEqual, 3)
				So(line["duplicate"], ShouldEqual, false)
				So(line["error"], ShouldEqual, "boom")
			})
		})

		Convey("When initialized with the text format", func() {
			var buf bytes.Buffer
			So(Init(WithFormat(FormatText), WithWriter(&buf)), ShouldBeNil)
			Named("ingest").Warn(context.Background(), "unmatched user", String("external_user_id", "u-1"))

			Convey("Then the named group prefixes the fields", func() {
				So(buf.String(), ShouldContainSubstring, "unmatched user")
				So(buf.String(), ShouldContainSubstring, "ingest.external_user_id=u-1")
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given a logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithWriter(&buf)), ShouldBeNil)

		Convey("When the level is raised to error", func() {
			So(SetLevelString(" ERROR "), ShouldBeNil)
			Get().Info(context.Background(), "hidden")
			Get().Error(context.Background(), "shown")

			Convey("Then lower levels are dropped", func() {
				So(strings.Contains(buf.String(), "hidden"), ShouldBeFalse)
				So(buf.String(), ShouldContainSubstring, "shown")
			})
		})

		Convey("When the level is debug", func() {
			So(SetLevelString("debug"), ShouldBeNil)
			Get().Debug(context.Background(), "details")

			Convey("Then debug lines are written", func() {
				So(buf.String(), ShouldContainSubstring, "details")
			})
		})

		Convey("When the level is unknown", func() {
			Convey("Then an error is returned", func() {
				So(SetLevelString("verbose"), ShouldNotBeNil)
				So(SetLevelString("warning"), ShouldBeNil)
			})
		})
	})
}
