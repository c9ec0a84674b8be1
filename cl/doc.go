// Package cl wraps the handle-based compute API in package native.
//
// Each resource is an entity that owns its native handle through a Handle
// container and releases it exactly once. Dependent entities remember the
// collaborators they operate against through junctions, so a kernel runs
// and a buffer copies without being handed a queue each time:
//
//	var platform cl.Platform
//	var device cl.Device
//	var context cl.Context
//	var queue cl.CommandQueue
//	platform.SelectFirst(api)
//	device.SelectFirst(&platform, native.DeviceTypeGPU)
//	context.Create(&platform, &device)
//	defer context.Release()
//	queue.Create(&device, &context)
//	defer queue.Release()
//
// Kernel arguments are marshalled from ordinary Go values; see ResolveArg.
package cl
