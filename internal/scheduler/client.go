package scheduler

import (
	"crypto/tls"
	"fmt"

	"crmcore_backend/platform/config"
	"crmcore_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client registers the periodic pipeline health sweep with asynq.
type Client struct {
	scheduler *asynq.Scheduler
	queue     string
}

func NewClient(cfg config.SchedulerConfig, log *logger.Logger) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Error("periodic task enqueue failed", "error", err)
			}
		},
	})

	task, err := NewPipelineHealthCheckTask(PipelineHealthCheckPayload{})
	if err != nil {
		return nil, err
	}

	interval := cfg.GetHealthSweepInterval()
	if _, err := scheduler.Register(fmt.Sprintf("@every %s", interval), task, asynq.Queue(queue)); err != nil {
		return nil, err
	}

	return &Client{scheduler: scheduler, queue: queue}, nil
}

// Run starts the periodic registration loop; it returns when the scheduler
// stops.
func (c *Client) Run() error {
	if c == nil || c.scheduler == nil {
		return nil
	}
	return c.scheduler.Run()
}

func (c *Client) Shutdown() {
	if c == nil || c.scheduler == nil {
		return
	}
	c.scheduler.Shutdown()
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
