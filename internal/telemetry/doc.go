// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 TailorFlow 提供集中式的 TracerProvider 和 MeterProvider 配置。
// 当遥测功能禁用时，使用 noop 实现，不连接任何外部服务。
//
// Observer 把工作流引擎的阶段、路由与运行事件导出为 OTel 指标，
// 与 metrics.Collector 一起挂到 workflow.WithObserver 上。
package telemetry
