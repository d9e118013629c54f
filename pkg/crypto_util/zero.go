package crypto_util

import "runtime"

// ZeroBytes 将敏感数据 (种子、私钥) 原地清零
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
	// 防止编译器把写操作当成死代码优化掉
	runtime.KeepAlive(b)
}

// ZeroAll 依次清零多个切片
func ZeroAll(bufs ...[]byte) {
	for _, b := range bufs {
		ZeroBytes(b)
	}
}
