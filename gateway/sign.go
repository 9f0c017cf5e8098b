package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"time"
)

// timeNowMillis 可注入的时间源，测试中替换为固定值。
var timeNowMillis = func() int64 { return time.Now().UnixMilli() }

// SignParams 按 Binance 规则对请求参数做 HMAC-SHA256 签名：
// 参数按 key 排序拼接、附加 timestamp/recvWindow 后对整串签名。
// 返回编码后的 query 串与签名。不修改调用方的 params。
func SignParams(params map[string]string, secret string, recvWindowMs int64) (query, signature string) {
	all := make(map[string]string, len(params)+2)
	for k, v := range params {
		all[k] = v
	}
	if recvWindowMs > 0 {
		all["recvWindow"] = fmt.Sprintf("%d", recvWindowMs)
	}
	all["timestamp"] = fmt.Sprintf("%d", timeNowMillis())

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, k := range keys {
		values.Set(k, all[k])
	}
	query = values.Encode()

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(query))
	return query, hex.EncodeToString(mac.Sum(nil))
}
