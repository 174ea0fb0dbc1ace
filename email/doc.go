package email

// email is responsible for delivering an assembled message to an SMTP relay:
// choosing a relay that accepts a connection, negotiating TLS and
// authentication, and submitting the envelope. It is not designed to build
// message content, and submits whatever Envelope it is given.
