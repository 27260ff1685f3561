// Package domain содержит модели pipeline: Run, Task, Schedule,
// PipelineSpec и результат шага загрузки данных.
package domain
