// Package link lets two emulator instances exchange serial port bytes over
// the network as if they were connected by a link cable.
//
// One peer is the Primary: it provides the serial clock and is the only one
// allowed to start a transfer. The other is the Secondary and answers each
// clock request with its own byte. Roles are negotiated on the local network
// by Discover, without prior coordination.
//
// Transfers never block the emulation loop: a control register write only
// sends the request, replies are picked up by a periodic scheduler tick and
// the transfer completes after the delay the real hardware would take,
// whatever the network round-trip was. A peer that doesn't answer in time is
// treated as an unplugged cable, and the transfer reads DisconnectedByte.
package link
