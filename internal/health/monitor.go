package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/rs/zerolog"

	"github.com/dmarinho/rollback-engine/pkg/models"
)

// CloudWatchAPI defines the CloudWatch operations used by the monitor
type CloudWatchAPI interface {
	DescribeAlarms(ctx context.Context, params *cloudwatch.DescribeAlarmsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.DescribeAlarmsOutput, error)
}

// Monitor reads deployment alarm state for an environment. It is a pure
// read: repeated calls with unchanged alarm state return identical results.
type Monitor struct {
	client     CloudWatchAPI
	namePrefix string
	logger     zerolog.Logger
}

// NewMonitor creates a health check monitor. Alarms are scoped per
// environment by the naming convention "<prefix>-<environment>-".
func NewMonitor(client CloudWatchAPI, namePrefix string, logger zerolog.Logger) *Monitor {
	return &Monitor{
		client:     client,
		namePrefix: namePrefix,
		logger:     logger.With().Str("component", "health").Logger(),
	}
}

// alarmPrefix returns the alarm name prefix for an environment
func (m *Monitor) alarmPrefix(environment models.Environment) string {
	return fmt.Sprintf("%s-%s-", m.namePrefix, environment)
}

// Check inspects all deployment alarms for an environment. Success is true
// iff no alarm is currently in ALARM state; OK and INSUFFICIENT_DATA never
// cause failure, and an empty alarm set is healthy. Errors reaching the
// monitoring backend are returned as errors, never coerced to healthy.
func (m *Monitor) Check(ctx context.Context, environment models.Environment) (*models.HealthCheckResult, error) {
	start := time.Now()
	prefix := m.alarmPrefix(environment)

	var failed []models.FailedAlarm
	var nextToken *string
	total := 0

	for {
		out, err := m.client.DescribeAlarms(ctx, &cloudwatch.DescribeAlarmsInput{
			AlarmNamePrefix: aws.String(prefix),
			AlarmTypes:      []types.AlarmType{types.AlarmTypeMetricAlarm, types.AlarmTypeCompositeAlarm},
			NextToken:       nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to describe alarms for %s: %w", environment, err)
		}

		for _, alarm := range out.MetricAlarms {
			total++
			if alarm.StateValue == types.StateValueAlarm {
				failed = append(failed, models.FailedAlarm{
					Name:  aws.ToString(alarm.AlarmName),
					State: models.AlarmStateAlarm,
				})
			}
		}
		for _, alarm := range out.CompositeAlarms {
			total++
			if alarm.StateValue == types.StateValueAlarm {
				failed = append(failed, models.FailedAlarm{
					Name:  aws.ToString(alarm.AlarmName),
					State: models.AlarmStateAlarm,
				})
			}
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	result := &models.HealthCheckResult{
		Success:      len(failed) == 0,
		FailedAlarms: failed,
		Duration:     time.Since(start),
	}
	if !result.Success {
		result.Reason = summarizeFailures(failed)
	}

	m.logger.Info().
		Str("environment", string(environment)).
		Int("alarms_checked", total).
		Int("alarms_triggered", len(failed)).
		Bool("healthy", result.Success).
		Msg("Health check completed")

	return result, nil
}

// summarizeFailures builds a human-readable reason from the triggered set
func summarizeFailures(failed []models.FailedAlarm) string {
	parts := make([]string, 0, len(failed))
	for _, alarm := range failed {
		parts = append(parts, fmt.Sprintf("%s in %s state", alarm.Name, alarm.State))
	}
	return "Alarm " + strings.Join(parts, ", ")
}
