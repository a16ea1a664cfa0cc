package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// State 表示熔断器状态
type State int

const (
	StateClosed   State = iota // 正常放行
	StateOpen                  // 直接拒绝
	StateHalfOpen              // 试探性放行少量请求
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config 熔断器配置
type Config struct {
	Name string
	// 连续失败多少次后打开
	FailureThreshold int
	// 半开状态下成功多少次后关闭
	SuccessThreshold int
	// 打开状态持续多久后进入半开
	Timeout time.Duration
	// 半开状态下同时在途的最大请求数
	HalfOpenMaxRequests int
	// OnStateChange is called with the lock released.
	OnStateChange func(name string, from, to State)
}

func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 3,
	}
}

type CircuitBreaker struct {
	config Config
	now    func() time.Time

	mu            sync.Mutex
	state         State
	failureCount  int
	successCount  int
	halfOpenCount int
	openedAt      time.Time
}

func NewCircuitBreaker(config Config) *CircuitBreaker {
	return &CircuitBreaker{
		config: config,
		now:    time.Now,
		state:  StateClosed,
	}
}

// Execute runs fn unless the breaker is open. Context cancellation by the
// caller is not counted as a failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.before(); err != nil {
		return err
	}

	err := fn(ctx)

	cb.after(err == nil || errors.Is(err, context.Canceled))
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	var change func()

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.config.Timeout {
		change = cb.setState(StateHalfOpen)
	}

	var err error
	switch cb.state {
	case StateOpen:
		err = ErrCircuitBreakerOpen
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.HalfOpenMaxRequests {
			err = ErrCircuitBreakerOpen
		} else {
			cb.halfOpenCount++
		}
	}
	cb.mu.Unlock()

	if change != nil {
		change()
	}
	return err
}

func (cb *CircuitBreaker) after(success bool) {
	cb.mu.Lock()
	var change func()

	switch cb.state {
	case StateClosed:
		if success {
			cb.failureCount = 0
		} else {
			cb.failureCount++
			if cb.failureCount >= cb.config.FailureThreshold {
				change = cb.setState(StateOpen)
			}
		}
	case StateHalfOpen:
		cb.halfOpenCount--
		if success {
			cb.successCount++
			if cb.successCount >= cb.config.SuccessThreshold {
				change = cb.setState(StateClosed)
			}
		} else {
			// 半开状态下任何失败立即重新打开
			change = cb.setState(StateOpen)
		}
	}
	cb.mu.Unlock()

	if change != nil {
		change()
	}
}

// setState must be called with mu held; it returns the hook invocation to run
// after unlocking.
func (cb *CircuitBreaker) setState(to State) func() {
	from := cb.state
	cb.state = to
	cb.failureCount = 0
	cb.successCount = 0
	cb.halfOpenCount = 0
	if to == StateOpen {
		cb.openedAt = cb.now()
	}

	hook := cb.config.OnStateChange
	if hook == nil || from == to {
		return nil
	}
	name := cb.config.Name
	return func() { hook(name, from, to) }
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	change := cb.setState(StateClosed)
	cb.mu.Unlock()
	if change != nil {
		change()
	}
}
