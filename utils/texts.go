package utils

// SMS templates keyed by template name.
var Texts = map[string]string{
	"otp": `Your Sweeps Casino code is %s. It expires in %d minutes. Never share this code.`,

	"kyc_approved": `Your identity verification is approved. You can now redeem Sweeps Coins.`,

	"kyc_rejected": `We could not verify your identity: %s. Please resubmit from your account page.`,

	"redemption_paid": `Your redemption #%d for %s SC has been approved and is on its way.`,

	"redemption_rejected": `Your redemption #%d for %s SC was declined: %s. The coins are back in your balance.`,

	"jackpot_win": `CONGRATULATIONS! You hit the %s jackpot for %s %s!`,

	"purchase": `Thanks for your purchase! %s GC and %s free SC were added to your account.`,
}
