package bind_group_provider

// BufferWrite uploads Data into the buffer a provider holds at Binding, starting
// Offset bytes in. The renderer batches writes onto the queue in slice order.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}

// UniformWrite replaces the whole uniform at binding.
//
// Parameters:
//   - provider: the initialized provider holding the uniform
//   - binding: the uniform's binding index
//   - data: the marshaled struct
//
// Returns:
//   - BufferWrite: a write at offset zero
func UniformWrite(provider BindGroupProvider, binding int, data []byte) BufferWrite {
	return BufferWrite{Provider: provider, Binding: binding, Data: data}
}
