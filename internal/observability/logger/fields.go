package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos estándar HTTP.

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }

// DurationMs crea un campo para la duración en milisegundos.
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }
func Bytes(v int) zap.Field              { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field        { return zap.String("client_ip", v) }

// Campos estándar de negocio.

// Store crea un campo para el nombre del store (tenant).
func Store(v string) zap.Field { return zap.String("store", v) }

func UserID(v string) zap.Field   { return zap.String("user_id", v) }
func ClientID(v string) zap.Field { return zap.String("client_id", v) }
func NonceID(v string) zap.Field  { return zap.String("nonce_id", v) }

// Endpoint crea un campo para el endpoint de verificación (mobile|email).
func Endpoint(v string) zap.Field { return zap.String("endpoint", v) }

// Flow crea un campo para el flow OAuth (authorization_code|implicit_grant).
func Flow(v string) zap.Field { return zap.String("flow", v) }

// Campos estándar de sistema.

func Component(v string) zap.Field { return zap.String("component", v) }
func Addr(v string) zap.Field      { return zap.String("addr", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Err(err error) zap.Field      { return zap.Error(err) }

// Genéricos.

func String(key, v string) zap.Field    { return zap.String(key, v) }
func Int(key string, v int) zap.Field   { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field   { return zap.Any(key, v) }
