// Package wait содержит отменяемое ожидание условия с таймаутом.
// Используется опросом статуса входа через Telegram и ожиданием бесплатного спина.
package wait

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout возвращается, если условие не выполнилось за отведенное время
var ErrTimeout = errors.New("wait: timed out waiting for the condition")

// ConditionFunc проверяет условие. done=true завершает ожидание,
// ненулевая ошибка прерывает его и возвращается вызывающему.
type ConditionFunc func(ctx context.Context) (done bool, err error)

// Poll проверяет условие сразу и затем каждые interval, пока оно не выполнится,
// не истечет timeout (ErrTimeout) или не будет отменен ctx (ctx.Err()).
// timeout <= 0 означает ожидание до отмены ctx.
func Poll(ctx context.Context, interval, timeout time.Duration, cond ConditionFunc) error {
	if interval <= 0 {
		return errors.New("wait: interval must be positive")
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := cond(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return ErrTimeout
		case <-ticker.C:
		}
	}
}

// Until ждет наступления момента t или отмены ctx
func Until(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
