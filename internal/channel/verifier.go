// Package channel checks that the notification channels wired into alarm
// actions exist before the first alarm references them.
package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

var ErrUnsupportedChannel = errors.New("unsupported notification channel")

// SNSAPI defines the SNS operations needed to verify a topic.
type SNSAPI interface {
	GetTopicAttributes(
		ctx context.Context,
		input *sns.GetTopicAttributesInput,
		optFns ...func(*sns.Options)) (*sns.GetTopicAttributesOutput, error)
}

type Verifier struct {
	sns SNSAPI
}

func NewVerifier(client SNSAPI) *Verifier {
	return &Verifier{
		sns: client,
	}
}

// Verify checks every channel and returns all failures joined together.
// Duplicate ARNs are checked once.
func (v *Verifier) Verify(ctx context.Context, channels ...string) error {
	seen := make(map[string]struct{}, len(channels))

	var errs []error
	for _, channel := range channels {
		if _, ok := seen[channel]; ok {
			continue
		}
		seen[channel] = struct{}{}

		if err := v.verify(ctx, channel); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (v *Verifier) verify(ctx context.Context, channel string) error {
	parsed, err := arn.Parse(channel)
	if err != nil {
		return fmt.Errorf("cannot parse channel %q: %w", channel, err)
	}

	if parsed.Service != "sns" {
		return fmt.Errorf("%w: %q", ErrUnsupportedChannel, channel)
	}

	// Topic names never contain ':', subscription ARNs do.
	if strings.Contains(parsed.Resource, ":") {
		return fmt.Errorf("%w: %q is not a topic", ErrUnsupportedChannel, channel)
	}

	if _, err := v.sns.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{
		TopicArn: aws.String(channel),
	}); err != nil {
		return fmt.Errorf("cannot get topic attributes %q: %w", channel, err)
	}

	return nil
}
