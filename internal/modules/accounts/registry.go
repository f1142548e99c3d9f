package accounts

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/sipcopy/internal/brokers"
	"github.com/aristath/sipcopy/internal/domain"
	"github.com/aristath/sipcopy/internal/utils"
	"github.com/rs/zerolog"
)

// BrokerResolver resolves a broker name to its registration
type BrokerResolver interface {
	Resolve(name string) (brokers.Entry, error)
}

// Entry is a loaded account together with the adapter that owns its session
type Entry struct {
	Account    domain.Account
	Adapter    domain.BrokerAdapter
	SkipReason string // why a copy does not take part in fan-out, "" when eligible
}

// Eligible reports whether the account takes part in order placement
func (e *Entry) Eligible() bool {
	return e.SkipReason == ""
}

// DroppedRecord is a store row that could not be loaded
type DroppedRecord struct {
	Line   int
	UserID string
	Reason string
}

// Registry is the validated set of accounts for one run
type Registry struct {
	Master  *Entry
	Copies  []*Entry
	Dropped []DroppedRecord
}

// EligibleCopies returns the copies that take part in fan-out
func (r *Registry) EligibleCopies() []*Entry {
	var out []*Entry
	for _, c := range r.Copies {
		if c.Eligible() {
			out = append(out, c)
		}
	}
	return out
}

// All returns the master (when present) followed by every copy
func (r *Registry) All() []*Entry {
	out := make([]*Entry, 0, len(r.Copies)+1)
	if r.Master != nil {
		out = append(out, r.Master)
	}
	return append(out, r.Copies...)
}

// Loader turns store records into a Registry
type Loader struct {
	brokers  BrokerResolver
	location *time.Location
	log      zerolog.Logger
}

// NewLoader creates an account loader. Subscription dates are evaluated in loc.
func NewLoader(resolver BrokerResolver, loc *time.Location, log zerolog.Logger) *Loader {
	return &Loader{
		brokers:  resolver,
		location: loc,
		log:      log.With().Str("service", "accounts").Logger(),
	}
}

// Load validates the records and builds one adapter per account.
//
// Fatal (ConfigurationError): unknown broker, a second master row, no master, or a
// master row lacking a credential its broker requires. Copy rows lacking credentials
// or carrying an unusable multiplier are dropped with a logged reason.
func (l *Loader) Load(records []Record, now time.Time) (*Registry, error) {
	reg := &Registry{}

	for _, rec := range records {
		userID := rec.Get(ColUserID)
		if userID == "" {
			reg.Dropped = append(reg.Dropped, l.drop(rec, "", "missing USER_ID"))
			continue
		}

		brokerName := rec.Get(ColBroker)
		if brokerName == "" {
			brokerName = string(domain.BrokerFinvasia)
		}
		brokerEntry, err := l.brokers.Resolve(brokerName)
		if err != nil {
			return nil, fmt.Errorf("account %s (line %d): %w", userID, rec.Line, err)
		}

		isMaster, _ := utils.ParseBool(rec.Get(ColIsMaster))
		if isMaster && reg.Master != nil {
			return nil, domain.NewConfigurationError("duplicate master account %s (line %d); %s is already master",
				userID, rec.Line, reg.Master.Account.UserID)
		}

		account := domain.Account{
			UserID:      userID,
			Broker:      brokerEntry.ID,
			Role:        domain.RoleCopy,
			Credentials: credentialsOf(rec),
			Multiplier:  1,
		}
		if isMaster {
			account.Role = domain.RoleMaster
		}

		if missing := account.Credentials.Missing(brokerEntry.Required); len(missing) > 0 {
			if isMaster {
				return nil, domain.NewConfigurationError("master account %s is missing %s required by %s",
					userID, joinFields(missing), brokerEntry.ID)
			}
			reg.Dropped = append(reg.Dropped, l.drop(rec, userID, "missing "+joinFields(missing)))
			continue
		}

		if raw := rec.Get(ColCopyMultiplier); raw != "" {
			m, err := strconv.ParseFloat(raw, 64)
			if err != nil || m < 0 {
				if isMaster {
					return nil, domain.NewConfigurationError("master account %s has invalid COPY_MULTIPLIER %q", userID, raw)
				}
				reg.Dropped = append(reg.Dropped, l.drop(rec, userID, fmt.Sprintf("invalid COPY_MULTIPLIER %q", raw)))
				continue
			}
			account.Multiplier = m
		}

		account.CopyEnabled, _ = utils.ParseBool(rec.Get(ColCopy))
		account.Subscription, account.Expiry = EvaluateSubscription(rec.Get(ColSubscriptionExpiry), now, l.location)

		entry := &Entry{Account: account, Adapter: brokerEntry.New()}

		if isMaster {
			reg.Master = entry
			continue
		}

		entry.SkipReason = skipReason(account)
		reg.Copies = append(reg.Copies, entry)
	}

	if reg.Master == nil {
		return nil, domain.NewConfigurationError("account store has no master account")
	}

	l.log.Info().
		Str("master", reg.Master.Account.UserID).
		Str("master_broker", string(reg.Master.Account.Broker)).
		Int("copies", len(reg.Copies)).
		Int("eligible_copies", len(reg.EligibleCopies())).
		Int("dropped", len(reg.Dropped)).
		Msg("Accounts loaded")

	for _, c := range reg.Copies {
		if !c.Eligible() {
			l.log.Info().
				Str("user_id", c.Account.UserID).
				Str("reason", c.SkipReason).
				Msg("Copy account skipped for fan-out")
		}
	}

	return reg, nil
}

func (l *Loader) drop(rec Record, userID, reason string) DroppedRecord {
	l.log.Warn().
		Int("line", rec.Line).
		Str("user_id", userID).
		Str("reason", reason).
		Msg("Dropping account record")
	return DroppedRecord{Line: rec.Line, UserID: userID, Reason: reason}
}

// skipReason explains why a copy is excluded from fan-out
func skipReason(a domain.Account) string {
	switch {
	case a.Subscription != domain.SubscriptionActive:
		if a.Expiry == nil {
			return "subscription inactive: no valid expiry date"
		}
		return "subscription expired on " + a.Expiry.Format(ExpiryLayout)
	case !a.CopyEnabled:
		return "copy disabled"
	case a.Multiplier <= 0:
		return "copy multiplier is zero"
	}
	return ""
}

func credentialsOf(rec Record) domain.Credentials {
	return domain.Credentials{
		UserID:      rec.Get(ColUserID),
		Password:    rec.Get(ColPassword),
		TOTPSecret:  rec.Get(ColTOTPSecret),
		APIKey:      rec.Get(ColAPIKey),
		APISecret:   rec.Get(ColAPISecret),
		VendorCode:  rec.Get(ColVendorCode),
		IMEI:        rec.Get(ColIMEI),
		AccessToken: rec.Get(ColAccessToken),
	}
}

func joinFields(fields []domain.CredentialField) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
