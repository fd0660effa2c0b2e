package config_test

import (
	"errors"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/config"
	"github.com/okian/arena/internal/domain/model"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, "sqlite")
			convey.So(cfg.DatabaseDSN, convey.ShouldEqual, "arena.db")
			convey.So(cfg.MaxBodyBytes, convey.ShouldEqual, 1<<20)
			convey.So(cfg.TenantScoping, convey.ShouldBeFalse)
			convey.So(config.Validate(cfg), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New()

		convey.Convey("When the store driver is unknown", func() {
			cfg.StoreDriver = "mongo"
			err := config.Validate(cfg)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When postgres has no DSN", func() {
			cfg.StoreDriver = "postgres"
			cfg.DatabaseDSN = ""
			convey.So(config.Validate(cfg), convey.ShouldNotBeNil)
		})

		convey.Convey("When the memory store has no DSN", func() {
			cfg.StoreDriver = "memory"
			cfg.DatabaseDSN = ""
			convey.So(config.Validate(cfg), convey.ShouldBeNil)
		})

		convey.Convey("When a webhook secret names an unknown source", func() {
			cfg.WebhookSecrets = map[string]string{"salesforce": "s"}
			convey.So(config.Validate(cfg), convey.ShouldNotBeNil)
		})

		convey.Convey("When a seeded user has no dealership", func() {
			cfg.Users = []config.User{{Name: "Ana", Role: "sales_rep", ExternalUserID: "u-1"}}
			convey.So(config.Validate(cfg), convey.ShouldNotBeNil)
		})

		convey.Convey("When a seeded user has an unknown role", func() {
			cfg.Users = []config.User{{Name: "Ana", Role: "owner", DealershipID: "d-1", ExternalUserID: "u-1"}}
			convey.So(config.Validate(cfg), convey.ShouldNotBeNil)
		})

		convey.Convey("When the log format is unknown", func() {
			cfg.LogFormat = "xml"
			convey.So(config.Validate(cfg), convey.ShouldNotBeNil)
		})
	})
}

func TestConfig_SourceMaps(t *testing.T) {
	convey.Convey("Given webhook maps keyed by source name", t, func() {
		cfg := config.New()
		cfg.WebhookSecrets = map[string]string{"elead": "a", "Fortellis": "b", "bogus": "c"}
		cfg.WebhookTenants = map[string]string{"xtime": "org-1"}

		convey.Convey("Then they convert to source systems, dropping unknown names", func() {
			convey.So(cfg.Secrets(), convey.ShouldResemble, map[model.SourceSystem]string{
				model.SourceElead:     "a",
				model.SourceFortellis: "b",
			})
			convey.So(cfg.Tenants(), convey.ShouldResemble, map[model.SourceSystem]string{model.SourceXtime: "org-1"})
		})
	})

	convey.Convey("Given a seeded user entry", t, func() {
		u := config.User{Name: "Ana", Role: "manager", DealershipID: "d-1", ExternalUserID: "u-1", CRMSource: "elead", OrganizationID: "org-1"}

		convey.Convey("Then it converts to a domain user", func() {
			m := u.Model()
			convey.So(m.Role, convey.ShouldEqual, model.RoleManager)
			convey.So(m.CRMSource, convey.ShouldEqual, model.SourceElead)
			convey.So(m.OrganizationID, convey.ShouldEqual, "org-1")
		})
	})
}
