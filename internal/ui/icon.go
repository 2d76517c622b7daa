package ui

// iconBytes is a 16x16 single-color PNG used as the tray icon placeholder
// until proper artwork lands.
var iconBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
	0x08, 0x02, 0x00, 0x00, 0x00, 0x90, 0x91, 0x68,
	0x36, 0x00, 0x00, 0x00, 0x1c, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x62, 0x32, 0x34, 0x34, 0x64,
	0xa0, 0x04, 0x30, 0x31, 0x8c, 0x1a, 0x30, 0x6a,
	0xc0, 0xa8, 0x01, 0xa3, 0x06, 0x8c, 0x1a, 0x40,
	0x29, 0x00, 0x04, 0x18, 0x00, 0x51, 0x78, 0x00,
	0x9d, 0x17, 0x34, 0x11, 0xa9, 0x00, 0x00, 0x00,
	0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60,
	0x82,
}
