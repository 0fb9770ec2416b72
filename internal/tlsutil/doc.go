// Package tlsutil 提供集中式 TLS 与连接池设置，
// 供分类客户端（HTTP）与标签缓存（Redis）使用：TLS 1.2+，仅 AEAD 密码套件。
package tlsutil
