// Package route53 implements the provider interface for AWS Route 53.
package route53

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/route53"
	"github.com/aws/aws-sdk-go/service/route53/route53iface"

	"gitlab.bluewillows.net/root/wansync/pkg/provider"
)

// ProviderName identifies this provider in logs and errors.
const ProviderName = "route53"

// listPageSize is how many record sets are listed from the start name. More
// than one is needed when weighted or latency sets share the name.
const listPageSize = "10"

// Provider implements provider.Provider for AWS Route 53.
type Provider struct {
	client      route53iface.Route53API
	zoneID      string
	comment     string
	wait        bool
	waitTimeout time.Duration
	waitDelay   time.Duration
	logger      *slog.Logger
}

// ProviderOption is a functional option for configuring the Provider.
type ProviderOption func(*Provider)

// WithLogger sets a custom logger for the provider.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithWaitDelay sets the polling interval used while waiting for INSYNC.
func WithWaitDelay(d time.Duration) ProviderOption {
	return func(p *Provider) {
		if d > 0 {
			p.waitDelay = d
		}
	}
}

// New creates a Route 53 provider backed by an AWS SDK session. httpClient
// may be nil to use the SDK default.
func New(config *Config, httpClient *http.Client, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := *config
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsConfig := aws.NewConfig().
		WithRegion(cfg.Region).
		WithMaxRetries(cfg.MaxRetries)
	if httpClient != nil {
		awsConfig = awsConfig.WithHTTPClient(httpClient)
	}
	if cfg.AccessKeyID != "" {
		awsConfig = awsConfig.WithCredentials(
			credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		)
	}
	if cfg.Endpoint != "" {
		awsConfig = awsConfig.WithEndpoint(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("creating AWS session: %w", err)
	}

	return NewWithClient(&cfg, route53.New(sess), opts...)
}

// NewWithClient creates a provider around an existing Route 53 API client.
func NewWithClient(config *Config, client route53iface.Route53API, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if client == nil {
		return nil, fmt.Errorf("route53 client is required")
	}

	cfg := *config
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		client:      client,
		zoneID:      cfg.ZoneID,
		comment:     cfg.Comment,
		wait:        cfg.Wait,
		waitTimeout: cfg.WaitTimeout,
		waitDelay:   10 * time.Second,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Ensure Provider implements provider.Provider.
var _ provider.Provider = (*Provider)(nil)

// Name returns "route53".
func (p *Provider) Name() string {
	return ProviderName
}

// ZoneID returns the configured hosted zone ID without prefix.
func (p *Provider) ZoneID() string {
	return p.zoneID
}

// Ping verifies credentials and that the hosted zone exists.
func (p *Provider) Ping(ctx context.Context) error {
	out, err := p.client.GetHostedZoneWithContext(ctx, &route53.GetHostedZoneInput{
		Id: aws.String(p.zoneID),
	})
	if err != nil {
		return provider.WrapError(ProviderName, provider.OpPing, classify(err))
	}

	if out.HostedZone != nil {
		p.logger.Debug("Route 53 hosted zone reachable",
			slog.String("zone_id", p.zoneID),
			slog.String("zone", aws.StringValue(out.HostedZone.Name)),
		)
	}
	return nil
}

// GetRecord returns the simple (non-routing-policy) record set for name and
// type. Values are canonicalized so they compare with observed addresses.
func (p *Provider) GetRecord(ctx context.Context, zoneID, name string, recordType provider.RecordType) (*provider.Record, error) {
	zoneID = p.zone(zoneID)
	fqdn := provider.FQDN(name)

	out, err := p.client.ListResourceRecordSetsWithContext(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(zoneID),
		StartRecordName: aws.String(fqdn),
		StartRecordType: aws.String(string(recordType)),
		MaxItems:        aws.String(listPageSize),
	})
	if err != nil {
		return nil, provider.WrapRecordError(ProviderName, provider.OpGet, recordType, fqdn, classify(err))
	}

	for _, rrs := range out.ResourceRecordSets {
		if provider.FQDN(decodeName(aws.StringValue(rrs.Name))) != fqdn {
			continue
		}
		if aws.StringValue(rrs.Type) != string(recordType) || rrs.SetIdentifier != nil {
			continue
		}
		return p.toRecord(zoneID, fqdn, recordType, rrs), nil
	}

	return nil, provider.WrapRecordError(ProviderName, provider.OpGet, recordType, fqdn, provider.ErrNotFound)
}

func (p *Provider) toRecord(zoneID, fqdn string, recordType provider.RecordType, rrs *route53.ResourceRecordSet) *provider.Record {
	rec := &provider.Record{
		ZoneID: zoneID,
		Name:   fqdn,
		Type:   recordType,
		TTL:    int(aws.Int64Value(rrs.TTL)),
	}

	if rrs.AliasTarget != nil {
		rec.Value = "ALIAS " + aws.StringValue(rrs.AliasTarget.DNSName)
		return rec
	}
	if len(rrs.ResourceRecords) == 0 {
		return rec
	}
	if len(rrs.ResourceRecords) > 1 {
		p.logger.Warn("record set has multiple values, comparing the first",
			slog.String("name", fqdn),
			slog.String("type", string(recordType)),
			slog.Int("values", len(rrs.ResourceRecords)),
		)
	}

	raw := aws.StringValue(rrs.ResourceRecords[0].Value)
	value, err := provider.CanonicalAddress(recordType, raw)
	if err != nil {
		// An unparseable value can never equal an observed address, so the
		// next upsert replaces it.
		p.logger.Warn("published record value is not a valid address",
			slog.String("name", fqdn),
			slog.String("type", string(recordType)),
			slog.String("value", raw),
		)
		value = strings.TrimSpace(raw)
	}
	rec.Value = value

	return rec
}

// UpsertRecord creates or replaces the record set with a single value.
func (p *Provider) UpsertRecord(ctx context.Context, record provider.Record) error {
	zoneID := p.zone(record.ZoneID)
	fqdn := provider.FQDN(record.Name)

	value, err := provider.CanonicalAddress(record.Type, record.Value)
	if err != nil {
		return provider.WrapRecordError(ProviderName, provider.OpUpsert, record.Type, fqdn, err)
	}

	ttl := record.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	out, err := p.client.ChangeResourceRecordSetsWithContext(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &route53.ChangeBatch{
			Comment: aws.String(p.comment),
			Changes: []*route53.Change{
				{
					Action: aws.String(route53.ChangeActionUpsert),
					ResourceRecordSet: &route53.ResourceRecordSet{
						Name: aws.String(fqdn),
						Type: aws.String(string(record.Type)),
						TTL:  aws.Int64(int64(ttl)),
						ResourceRecords: []*route53.ResourceRecord{
							{Value: aws.String(value)},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return provider.WrapRecordError(ProviderName, provider.OpUpsert, record.Type, fqdn, classify(err))
	}

	var changeID, status string
	if out.ChangeInfo != nil {
		changeID = aws.StringValue(out.ChangeInfo.Id)
		status = aws.StringValue(out.ChangeInfo.Status)
	}

	p.logger.Debug("submitted Route 53 change",
		slog.String("name", fqdn),
		slog.String("type", string(record.Type)),
		slog.String("change_id", changeID),
		slog.String("status", status),
	)

	if !p.wait || changeID == "" || status == route53.ChangeStatusInsync {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.waitTimeout)
	defer cancel()

	err = p.client.WaitUntilResourceRecordSetsChangedWithContext(waitCtx,
		&route53.GetChangeInput{Id: aws.String(changeID)},
		request.WithWaiterDelay(request.ConstantWaiterDelay(p.waitDelay)),
	)
	if err != nil {
		return provider.WrapRecordError(ProviderName, provider.OpUpsert, record.Type, fqdn,
			fmt.Errorf("waiting for change %s: %w", changeID, classify(err)))
	}

	p.logger.Debug("Route 53 change in sync",
		slog.String("name", fqdn),
		slog.String("change_id", changeID),
	)
	return nil
}

// zone returns zoneID normalized, falling back to the configured zone.
func (p *Provider) zone(zoneID string) string {
	if id := NormalizeZoneID(zoneID); id != "" {
		return id
	}
	return p.zoneID
}

// classify maps AWS error codes onto the provider sentinel errors.
func classify(err error) error {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return err
	}

	switch aerr.Code() {
	case "AccessDenied", "AccessDeniedException", "InvalidClientTokenId",
		"SignatureDoesNotMatch", "ExpiredToken", "UnrecognizedClientException",
		"NoCredentialProviders":
		return fmt.Errorf("%w: %w", provider.ErrUnauthorized, err)
	case request.ErrCodeRequestError, request.ErrCodeResponseTimeout,
		route53.ErrCodeThrottlingException, route53.ErrCodePriorRequestNotComplete,
		"Throttling", "ServiceUnavailable":
		return fmt.Errorf("%w: %w", provider.ErrProviderUnavailable, err)
	}
	return err
}

// decodeName undoes the \ddd octal escapes Route 53 uses in record names
// (e.g. "\052" for "*").
func decodeName(name string) string {
	if !strings.Contains(name, `\`) {
		return name
	}

	var b strings.Builder
	for i := 0; i < len(name); i++ {
		if name[i] == '\\' && i+4 <= len(name) {
			if n, err := strconv.ParseUint(name[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(n))
				i += 3
				continue
			}
		}
		b.WriteByte(name[i])
	}
	return b.String()
}
