// Package logger wraps a process-wide zap logger for horizonauth.
//
// Un único logger se construye con Init() en el arranque; cada request
// puede llevar su propio logger "scoped" en el context (request_id, provider,
// external_id) sin crear un core nuevo.
//
// Inicialización (cmd/horizonauth):
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
// En services:
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("authn"))
//	log.Info("identity resolved", logger.ExternalID(id), logger.Provider("sina"))
package logger
