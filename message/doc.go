package message

// message models an outgoing email: the parts that make up its content, the
// Envelope that carries them along with routing metadata, and the Assembler
// that builds an Envelope from a Draft. It also serializes an Envelope into
// a multipart MIME message. It doesn't read files or talk to relays.
