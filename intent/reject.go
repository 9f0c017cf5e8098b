package intent

import "fmt"

// Reason 机器可读的拒单原因。
type Reason string

const (
	ReasonInvalidPrice        Reason = "invalid_price"
	ReasonValueExceeded       Reason = "value_exceeded"
	ReasonInsufficientBalance Reason = "insufficient_balance"
)

// Rejection 本地拒单：订单从未提交到交易所。
type Rejection struct {
	Reason Reason
	Err    error
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %v", r.Reason, r.Err)
}

func (r *Rejection) Unwrap() error { return r.Err }

func reject(reason Reason, err error) *Rejection {
	return &Rejection{Reason: reason, Err: err}
}

// ReasonOf 从错误中提取拒单原因；非本地拒单返回空串。
func ReasonOf(err error) Reason {
	if rej, ok := err.(*Rejection); ok {
		return rej.Reason
	}
	return ""
}
